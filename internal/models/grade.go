package models

// GradeLevel is a student grade level in either the local track
// (Preschool through JC2) or the international track (Grade 1-12).
type GradeLevel string

const (
	GradePreschool    GradeLevel = "Preschool"
	GradeKindergarten GradeLevel = "Kindergarten"

	GradeP1 GradeLevel = "P1"
	GradeP2 GradeLevel = "P2"
	GradeP3 GradeLevel = "P3"
	GradeP4 GradeLevel = "P4"
	GradeP5 GradeLevel = "P5"
	GradeP6 GradeLevel = "P6"

	GradeSec1 GradeLevel = "Sec1"
	GradeSec2 GradeLevel = "Sec2"
	GradeSec3 GradeLevel = "Sec3"
	GradeSec4 GradeLevel = "Sec4"
	GradeSec5 GradeLevel = "Sec5"

	GradeJC1 GradeLevel = "JC1"
	GradeJC2 GradeLevel = "JC2"

	GradeIntl1  GradeLevel = "Grade 1"
	GradeIntl2  GradeLevel = "Grade 2"
	GradeIntl3  GradeLevel = "Grade 3"
	GradeIntl4  GradeLevel = "Grade 4"
	GradeIntl5  GradeLevel = "Grade 5"
	GradeIntl6  GradeLevel = "Grade 6"
	GradeIntl7  GradeLevel = "Grade 7"
	GradeIntl8  GradeLevel = "Grade 8"
	GradeIntl9  GradeLevel = "Grade 9"
	GradeIntl10 GradeLevel = "Grade 10"
	GradeIntl11 GradeLevel = "Grade 11"
	GradeIntl12 GradeLevel = "Grade 12"
)

// gradeProgression maps each grade level to its successor. Terminal grades
// (JC2, Grade 12) are absent: there is nothing to progress to, so lessons at
// those levels complete with an empty notification batch.
var gradeProgression = map[GradeLevel]GradeLevel{
	GradePreschool:    GradeKindergarten,
	GradeKindergarten: GradeP1,

	GradeP1: GradeP2,
	GradeP2: GradeP3,
	GradeP3: GradeP4,
	GradeP4: GradeP5,
	GradeP5: GradeP6,
	GradeP6: GradeSec1,

	GradeSec1: GradeSec2,
	GradeSec2: GradeSec3,
	GradeSec3: GradeSec4,
	GradeSec4: GradeJC1, // O-Level path
	GradeSec5: GradeJC1, // N(A)-Level path

	GradeJC1: GradeJC2,

	GradeIntl1:  GradeIntl2,
	GradeIntl2:  GradeIntl3,
	GradeIntl3:  GradeIntl4,
	GradeIntl4:  GradeIntl5,
	GradeIntl5:  GradeIntl6,
	GradeIntl6:  GradeIntl7,
	GradeIntl7:  GradeIntl8,
	GradeIntl8:  GradeIntl9,
	GradeIntl9:  GradeIntl10,
	GradeIntl10: GradeIntl11,
	GradeIntl11: GradeIntl12,
}

// Next returns the grade level that follows g, and false for terminal or
// unknown grades.
func (g GradeLevel) Next() (GradeLevel, bool) {
	next, ok := gradeProgression[g]
	return next, ok
}

// CanProgress reports whether g has a successor grade.
func (g GradeLevel) CanProgress() bool {
	_, ok := gradeProgression[g]
	return ok
}

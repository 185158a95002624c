package records

// Student is a stored student record.
type Student struct {
	ID         int64    `gorm:"primaryKey" json:"studentId"`
	Name       string   `gorm:"size:200;index;not null" json:"name"`
	Age        int      `json:"age"`
	TotalMarks int      `json:"totalMarks"`
	SubjectID  *int64   `json:"-"`
	Subject    *Subject `gorm:"constraint:OnDelete:SET NULL" json:"subject"`
	TvShowID   *int64   `json:"-"`
	TvShow     *TvShow  `gorm:"constraint:OnDelete:SET NULL" json:"tvShow"`
}

// TableName overrides the GORM table name.
func (Student) TableName() string { return "students" }

// Subject holds the per-subject marks of a student.
type Subject struct {
	ID      int64 `gorm:"primaryKey" json:"subjectId"`
	Telugu  int   `json:"telugu"`
	Hindi   int   `json:"hindi"`
	English int   `json:"english"`
	Maths   int   `json:"maths"`
}

// TableName overrides the GORM table name.
func (Subject) TableName() string { return "subjects" }

// Total is the sum of all subject marks.
func (s *Subject) Total() int {
	return s.English + s.Telugu + s.Maths + s.Hindi
}

// TvShow is a student's favorite show.
type TvShow struct {
	ID     int64    `gorm:"primaryKey;autoIncrement:false" json:"tvShowId"`
	URL    string   `gorm:"size:500" json:"url"`
	Name   string   `gorm:"size:255" json:"name"`
	Genres []string `gorm:"serializer:json;type:text" json:"genres"`
}

// TableName overrides the GORM table name.
func (TvShow) TableName() string { return "tv_shows" }

// Empty reports whether the show carries no information.
func (t *TvShow) Empty() bool {
	return t == nil || (t.ID == 0 && t.Name == "")
}

// Report summarizes the stored students.
type Report struct {
	TotalStudents     int64   `json:"totalStudents"`
	StudentsWithMarks int64   `json:"studentsWithMarks"`
	AverageMarks      float64 `json:"averageMarks"`
}

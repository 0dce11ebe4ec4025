package domain

import (
	"fmt"

	"github.com/samber/lo"
)

// User is a site user as returned by core_user_get_users and
// core_enrol_get_enrolled_users. Fields holds the whole record.
type User struct {
	ID        int64
	Username  string
	Email     string
	FirstName string
	LastName  string
	FullName  string
	Fields    Value
}

func (u User) MarshalJSON() ([]byte, error) { return u.Fields.MarshalJSON() }

func UserFromValue(v Value) User {
	id, _ := v.Field("id").Int64()
	return User{
		ID:        id,
		Username:  v.Field("username").Text(),
		Email:     v.Field("email").Text(),
		FirstName: v.Field("firstname").Text(),
		LastName:  v.Field("lastname").Text(),
		FullName:  v.Field("fullname").Text(),
		Fields:    v,
	}
}

// NewUser is the record sent to core_user_create_users. The four required
// fields are always sent; an optional field is sent when it is set, even
// to "". Extra carries any other user field verbatim.
type NewUser struct {
	Username  string   `yaml:"username" json:"username"`
	FirstName string   `yaml:"firstname" json:"firstname"`
	LastName  string   `yaml:"lastname" json:"lastname"`
	Email     string   `yaml:"email" json:"email"`
	Password  *string  `yaml:"password" json:"password,omitempty"`
	Auth      *string  `yaml:"auth" json:"auth,omitempty"`
	IDNumber  *string  `yaml:"idnumber" json:"idnumber,omitempty"`
	Lang      *string  `yaml:"lang" json:"lang,omitempty"`
	Timezone  *string  `yaml:"timezone" json:"timezone,omitempty"`
	Extra     []Member `yaml:"-" json:"-"`
}

func (n NewUser) Value() Value {
	fields := []Member{M("username", String(n.Username))}
	fields = appendSet(fields, "password", n.Password)
	fields = append(fields,
		M("firstname", String(n.FirstName)),
		M("lastname", String(n.LastName)),
		M("email", String(n.Email)),
	)
	fields = appendSet(fields, "auth", n.Auth)
	fields = appendSet(fields, "idnumber", n.IDNumber)
	fields = appendSet(fields, "lang", n.Lang)
	fields = appendSet(fields, "timezone", n.Timezone)

	return Object(append(fields, n.Extra...)...)
}

func appendSet(fields []Member, key string, value *string) []Member {
	if value == nil {
		return fields
	}
	return append(fields, M(key, String(*value)))
}

type Course struct {
	ID         int64
	FullName   string
	ShortName  string
	CategoryID int64
	Fields     Value
}

func (c Course) MarshalJSON() ([]byte, error) { return c.Fields.MarshalJSON() }

func CourseFromValue(v Value) Course {
	id, _ := v.Field("id").Int64()
	category, ok := v.Field("categoryid").Int64()
	if !ok {
		category, _ = v.Field("category").Int64()
	}
	return Course{
		ID:         id,
		FullName:   v.Field("fullname").Text(),
		ShortName:  v.Field("shortname").Text(),
		CategoryID: category,
		Fields:     v,
	}
}

// Category is a course category.
type Category struct {
	ID     int64
	Name   string
	Parent int64
	Fields Value
}

func (c Category) MarshalJSON() ([]byte, error) { return c.Fields.MarshalJSON() }

func CategoryFromValue(v Value) Category {
	id, _ := v.Field("id").Int64()
	parent, _ := v.Field("parent").Int64()
	return Category{ID: id, Name: v.Field("name").Text(), Parent: parent, Fields: v}
}

// GradeCategory is a gradebook category of a course.
type GradeCategory struct {
	ID     int64
	Name   string
	Fields Value
}

func (c GradeCategory) MarshalJSON() ([]byte, error) { return c.Fields.MarshalJSON() }

func GradeCategoryFromValue(v Value) GradeCategory {
	id, _ := v.Field("id").Int64()
	return GradeCategory{ID: id, Name: v.Field("name").Text(), Fields: v}
}

// UserGrade is one entry of the usergrades collection returned by
// gradereport_user_get_grade_items.
type UserGrade struct {
	UserID       int64
	UserFullName string
	CourseID     int64
	Email        string
	GradeItems   []GradeItem
	Fields       Value
}

func (g UserGrade) MarshalJSON() ([]byte, error) { return g.Fields.MarshalJSON() }

func UserGradeFromValue(v Value) UserGrade {
	userID, _ := v.Field("userid").Int64()
	courseID, _ := v.Field("courseid").Int64()
	return UserGrade{
		UserID:       userID,
		UserFullName: v.Field("userfullname").Text(),
		CourseID:     courseID,
		Email:        v.Field("email").Text(),
		GradeItems:   lo.Map(v.Field("gradeitems").Items(), func(item Value, _ int) GradeItem { return GradeItemFromValue(item) }),
		Fields:       v,
	}
}

func (g UserGrade) withGradeItems(items []GradeItem) UserGrade {
	g.GradeItems = items
	g.Fields = g.Fields.With("gradeitems", Array(lo.Map(items, func(item GradeItem, _ int) Value { return item.Fields })...))
	return g
}

func (g UserGrade) withEmail(email string) UserGrade {
	g.Email = email
	g.Fields = g.Fields.With("email", String(email))
	return g
}

// GradeItem is one gradable component of a user's grade list. CategoryID is
// nil when the service sends no category (course totals); GradeRaw is nil
// for an ungraded item.
type GradeItem struct {
	ID           int64
	ItemName     string
	ItemType     string
	CategoryID   *int64
	GradeRaw     *float64
	CategoryName string
	Fields       Value
}

func (i GradeItem) MarshalJSON() ([]byte, error) { return i.Fields.MarshalJSON() }

func GradeItemFromValue(v Value) GradeItem {
	id, _ := v.Field("id").Int64()
	item := GradeItem{
		ID:           id,
		ItemName:     v.Field("itemname").Text(),
		ItemType:     v.Field("itemtype").Text(),
		CategoryName: v.Field("categoryname").Text(),
		Fields:       v,
	}
	if category, ok := v.Field("categoryid").Int64(); ok {
		item.CategoryID = lo.ToPtr(category)
	}
	if grade, ok := v.Field("graderaw").Float64(); ok {
		item.GradeRaw = lo.ToPtr(grade)
	}
	return item
}

func (i GradeItem) withCategoryName(name string) GradeItem {
	i.CategoryName = name
	i.Fields = i.Fields.With("categoryname", String(name))
	return i
}

// GradeSchemaItem describes one column of a course grade book.
type GradeSchemaItem struct {
	ID       int64  `json:"id"`
	ItemType string `json:"itemtype"`
	ItemName string `json:"itemname"`
}

// GradesWithEmails is the grade report of a course with the email of every
// user attached, plus the grade columns of the course.
type GradesWithEmails struct {
	UserGrades []UserGrade       `json:"usergrades"`
	Schema     []GradeSchemaItem `json:"gradeitems"`
}

func arrayOf[T any](function string, v Value, project func(Value) T) ([]T, error) {
	if v.Kind() != KindArray {
		return nil, fmt.Errorf("%s: expected array, got %s: %w", function, v.Kind(), ErrUnexpectedShape)
	}
	return lo.Map(v.Items(), func(item Value, _ int) T { return project(item) }), nil
}

package domain

import (
	"github.com/samber/lo"
)

// UnknownCategory is the category name given to grade items whose category
// is not among the course grade categories.
const UnknownCategory = "Unknown"

// CategoryNames maps grade category id to name. Records without an id are
// skipped.
func CategoryNames(categories []Value) map[int64]string {
	withID := lo.Filter(categories, func(c Value, _ int) bool {
		_, ok := c.Field("id").Int64()
		return ok
	})

	return lo.SliceToMap(withID, func(c Value) (int64, string) {
		id, _ := c.Field("id").Int64()
		return id, c.Field("name").Text()
	})
}

// MergeCategoryNames returns a copy of userGrades where every grade item
// carries the name of its category, or UnknownCategory.
func MergeCategoryNames(userGrades []UserGrade, names map[int64]string) []UserGrade {
	return lo.Map(userGrades, func(ug UserGrade, _ int) UserGrade {
		items := lo.Map(ug.GradeItems, func(item GradeItem, _ int) GradeItem {
			name := UnknownCategory
			if item.CategoryID != nil {
				if found, ok := names[*item.CategoryID]; ok {
					name = found
				}
			}
			return item.withCategoryName(name)
		})

		return ug.withGradeItems(items)
	})
}

// EmailLookup maps user id to email. Records missing either field are
// skipped.
func EmailLookup(users []Value) map[int64]string {
	lookup := make(map[int64]string, len(users))

	for _, u := range users {
		id, ok := u.Field("id").Int64()
		if !ok {
			continue
		}
		email := u.Field("email")
		if email.Kind() != KindString {
			continue
		}
		lookup[id] = email.Text()
	}

	return lookup
}

// MergeEmails returns a copy of userGrades with the email of every user
// attached. Users absent from the lookup get an empty email.
func MergeEmails(userGrades []UserGrade, emails map[int64]string) []UserGrade {
	return lo.Map(userGrades, func(ug UserGrade, _ int) UserGrade {
		return ug.withEmail(emails[ug.UserID])
	})
}

// GradeSchema lists the grade items of the first user. All users of a course
// share the same grade book columns.
func GradeSchema(userGrades []UserGrade) []GradeSchemaItem {
	if len(userGrades) == 0 {
		return []GradeSchemaItem{}
	}

	return lo.Map(userGrades[0].GradeItems, func(item GradeItem, _ int) GradeSchemaItem {
		return GradeSchemaItem{
			ID:       item.ID,
			ItemType: item.ItemType,
			ItemName: item.ItemName,
		}
	})
}

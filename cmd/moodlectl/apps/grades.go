package apps

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/h2hsecure/moodlews/internal/domain"
)

var GradesCmd = &cobra.Command{
	Use:   "grades [courseid]",
	Short: "Grade report of a course with the category name on every grade item",
	Long:  AppDescription,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			courseID, err := parseID("course id", args[0])
			if err != nil {
				return nil, err
			}
			return svc.GradesReport(ctx, courseID)
		})
	},
}

var GradesEmailsCmd = &cobra.Command{
	Use:   "grades-emails [courseid]",
	Short: "Grade report of a course with user emails and the grade item schema",
	Long:  AppDescription,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			courseID, err := parseID("course id", args[0])
			if err != nil {
				return nil, err
			}
			return svc.GradesWithEmails(ctx, courseID)
		})
	},
}

var GradeCategoriesCmd = &cobra.Command{
	Use:   "gradecategories [courseid]",
	Short: "List the grade categories of a course",
	Long:  AppDescription,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			courseID, err := parseID("course id", args[0])
			if err != nil {
				return nil, err
			}
			return svc.GetGradeCategories(ctx, courseID)
		})
	},
}

var GradeCategoryCmd = &cobra.Command{
	Use:   "gradecategory [courseid] [fullname] [option=value...]",
	Short: "Create a grade category in a course",
	Long:  AppDescription,
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			courseID, err := parseID("course id", args[0])
			if err != nil {
				return nil, err
			}

			options, err := parseFields(args[2:])
			if err != nil {
				return nil, err
			}

			return svc.CreateGradeCategory(ctx, courseID, args[1], domain.Object(options...))
		})
	},
}

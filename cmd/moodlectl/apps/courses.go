package apps

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/h2hsecure/moodlews/internal/domain"
)

var CoursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "List every course visible to the token",
	Long:  AppDescription,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			return svc.GetCourses(ctx)
		})
	},
}

var CourseCmd = &cobra.Command{
	Use:   "course [courseid]",
	Short: "Show a single course, null when it does not exist",
	Long:  AppDescription,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			courseID, err := parseID("course id", args[0])
			if err != nil {
				return nil, err
			}
			return svc.GetCourse(ctx, courseID)
		})
	},
}

var CategoriesCmd = &cobra.Command{
	Use:   "categories [key] [value]",
	Short: "List course categories, optionally filtered by one criterion",
	Long:  AppDescription,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return cobra.ExactArgs(2)(cmd, args)
		}
		return cobra.MaximumNArgs(2)(cmd, args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			if len(args) == 0 {
				return svc.GetCategories(ctx)
			}
			return svc.GetCourseCategories(ctx, args[0], args[1])
		})
	},
}

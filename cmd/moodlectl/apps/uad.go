package apps

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/h2hsecure/moodlews/internal/domain"
)

// UadCmd groups the functions provided by the site specific local plugin.
var UadCmd = &cobra.Command{
	Use:   "uad",
	Short: "Site specific grade report and self enrolment functions",
	Long:  AppDescription,
}

var uadGradeCategoriesCmd = &cobra.Command{
	Use:   "gradecategories [courseid]",
	Short: "Grade categories of a course",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			courseID, err := parseID("course id", args[0])
			if err != nil {
				return nil, err
			}
			return svc.GetCourseGradeCategories(ctx, courseID)
		})
	},
}

var uadGradeReportCmd = &cobra.Command{
	Use:   "gradereport [courseid] [password]",
	Short: "Grade report of a course, restricted to a self enrolment when a password is given",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			courseID, err := parseID("course id", args[0])
			if err != nil {
				return nil, err
			}
			if len(args) == 2 {
				return svc.GetGradeReportSelfEnrol(ctx, courseID, args[1])
			}
			return svc.GetGradeReportCourse(ctx, courseID)
		})
	},
}

var uadSelfEnrolCmd = &cobra.Command{
	Use:   "selfenrol [courseid] [password]",
	Short: "Show the self enrolment instance of a course",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			courseID, err := parseID("course id", args[0])
			if err != nil {
				return nil, err
			}
			return svc.GetSelfEnrolCourse(ctx, courseID, args[1])
		})
	},
}

var uadCreateSelfEnrolCmd = &cobra.Command{
	Use:   "create-selfenrol [userid] [courseid] [password]",
	Short: "Create a self enrolment of a student",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			userID, err := parseID("user id", args[0])
			if err != nil {
				return nil, err
			}
			courseID, err := parseID("course id", args[1])
			if err != nil {
				return nil, err
			}
			return svc.CreateStudentSelfEnrol(ctx, userID, courseID, args[2])
		})
	},
}

func init() {
	UadCmd.AddCommand(uadGradeCategoriesCmd)
	UadCmd.AddCommand(uadGradeReportCmd)
	UadCmd.AddCommand(uadSelfEnrolCmd)
	UadCmd.AddCommand(uadCreateSelfEnrolCmd)
}

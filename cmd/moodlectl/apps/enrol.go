package apps

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/h2hsecure/moodlews/internal/domain"
)

var EnrolCmd = &cobra.Command{
	Use:   "enrol [userid] [courseid]",
	Short: "Enrol a user into a course as student",
	Long:  AppDescription,
	Args:  cobra.ExactArgs(2),
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
			return svc.AddStudentToCourse(ctx, userID, courseID)
		})
	},
}

var SelfEnrolCmd = &cobra.Command{
	Use:   "selfenrol [courseid] [userid] [enrolmentkey]",
	Short: "Self enrol a user into a course using its enrolment key",
	Long:  AppDescription,
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			courseID, err := parseID("course id", args[0])
			if err != nil {
				return nil, err
			}
			userID, err := parseID("user id", args[1])
			if err != nil {
				return nil, err
			}

			var key string
			if len(args) == 3 {
				key = args[2]
			}

			return svc.EnrolSelf(ctx, courseID, userID, key)
		})
	},
}

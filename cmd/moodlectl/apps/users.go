package apps

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/h2hsecure/moodlews/internal/adapter"
	"github.com/h2hsecure/moodlews/internal/domain"
)

var UserCmd = &cobra.Command{
	Use:   "user [key] [value]",
	Short: "Find the first user whose key (username, email, id, idnumber) matches value",
	Long:  AppDescription,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			return svc.GetUser(ctx, args[0], args[1])
		})
	},
}

var UsersCmd = &cobra.Command{
	Use:   "users [username...]",
	Short: "Look up users by username",
	Long:  AppDescription,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			if len(args) == 1 {
				return svc.GetUserByUsername(ctx, args[0])
			}
			return svc.GetUsersByUsernames(ctx, args)
		})
	},
}

var RegisterCmd = &cobra.Command{
	Use:   "register [username] [password] [firstname] [lastname] [email] [field=value...]",
	Short: "Create a new user record",
	Long:  AppDescription,
	Args:  cobra.MinimumNArgs(5),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			extra, err := parseFields(args[5:])
			if err != nil {
				return nil, err
			}

			return svc.RegisterUser(ctx, domain.NewUser{
				Username:  args[0],
				Password:  lo.ToPtr(args[1]),
				FirstName: args[2],
				LastName:  args[3],
				Email:     args[4],
				Auth:      lo.ToPtr("manual"),
				Extra:     extra,
			})
		})
	},
}

var EnrolledCmd = &cobra.Command{
	Use:   "enrolled [courseid]",
	Short: "List the users enrolled in a course",
	Long:  AppDescription,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			courseID, err := parseID("course id", args[0])
			if err != nil {
				return nil, err
			}
			return svc.GetEnrolledUsers(ctx, courseID)
		})
	},
}

var UserCoursesCmd = &cobra.Command{
	Use:   "user-courses [userid]",
	Short: "List the courses a user is enrolled in",
	Long:  AppDescription,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withService(func(ctx context.Context, svc domain.IService) (any, error) {
			userID, err := parseID("user id", args[0])
			if err != nil {
				return nil, err
			}
			return svc.GetUserCourses(ctx, userID)
		})
	},
}

var RegisterDirectoryCmd = &cobra.Command{
	Use:   "register-ldap [username...]",
	Short: "Create site users from their directory entries",
	Long:  AppDescription,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, e *env) error {
			svc, err := e.service(ctx)
			if err != nil {
				return err
			}

			created, err := RegisterFromDirectory(ctx, adapter.NewLdapAdapter(e.cfg), svc, args)
			if err != nil {
				return err
			}

			return printJSON(created)
		})
	},
}

// RegisterFromDirectory looks every username up before creating any of
// them, so a missing entry leaves the site untouched.
func RegisterFromDirectory(ctx context.Context, dir domain.Directory, svc domain.IService, usernames []string) (domain.Value, error) {
	users := make([]domain.NewUser, 0, len(usernames))

	for _, username := range usernames {
		user, err := dir.LookupUser(ctx, username)
		if err != nil {
			return domain.Null(), err
		}
		users = append(users, user)
	}

	created := make([]domain.Value, 0, len(users))
	for _, user := range users {
		res, err := svc.RegisterUser(ctx, user)
		if err != nil {
			return domain.Array(created...), fmt.Errorf("register %s: %w", user.Username, err)
		}
		created = append(created, res.Items()...)
	}

	return domain.Array(created...), nil
}

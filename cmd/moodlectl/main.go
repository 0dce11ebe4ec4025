package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/h2hsecure/moodlews/cmd/moodlectl/apps"
	"github.com/h2hsecure/moodlews/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "moodlectl",
	Short: "Moodle web service client",
	Long:  apps.AppDescription,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&apps.ConfigPath, "config", domain.DefaultConfigPath, "config file")
	rootCmd.PersistentFlags().StringVar(&apps.Server, "server", "", "web service endpoint, overrides moodle.server")
	rootCmd.PersistentFlags().StringVar(&apps.Token, "token", "", "web service token, overrides moodle.token and the stored one")

	rootCmd.AddCommand(apps.LoginCmd)
	rootCmd.AddCommand(apps.LogoutCmd)
	rootCmd.AddCommand(apps.UserCmd)
	rootCmd.AddCommand(apps.UsersCmd)
	rootCmd.AddCommand(apps.RegisterCmd)
	rootCmd.AddCommand(apps.RegisterDirectoryCmd)
	rootCmd.AddCommand(apps.EnrolledCmd)
	rootCmd.AddCommand(apps.UserCoursesCmd)
	rootCmd.AddCommand(apps.CoursesCmd)
	rootCmd.AddCommand(apps.CourseCmd)
	rootCmd.AddCommand(apps.CategoriesCmd)
	rootCmd.AddCommand(apps.EnrolCmd)
	rootCmd.AddCommand(apps.SelfEnrolCmd)
	rootCmd.AddCommand(apps.GradesCmd)
	rootCmd.AddCommand(apps.GradesEmailsCmd)
	rootCmd.AddCommand(apps.GradeCategoriesCmd)
	rootCmd.AddCommand(apps.GradeCategoryCmd)
	rootCmd.AddCommand(apps.UadCmd)
	rootCmd.AddCommand(apps.WatchCmd)
	rootCmd.AddCommand(apps.CallCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}

package apps

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/h2hsecure/moodlews/internal/domain"
)

var CallCmd = &cobra.Command{
	Use:   "call [function] [key=value...]",
	Short: "Invoke any web service function by name",
	Long: AppDescription + `

Parameters use the bracketed form keys of the REST protocol, e.g.
	moodlectl call core_course_get_courses_by_field field=id value=2
	moodlectl call core_user_get_users criteria[0][key]=email criteria[0][value]=a@x.com

With moodle.return_format set to json the response body is printed as received.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, e *env) error {
			return Call(ctx, e, args[0], args[1:])
		})
	},
}

func Call(ctx context.Context, e *env, function string, args []string) error {
	fields, err := parseFields(args)
	if err != nil {
		return err
	}

	svc, err := e.service(ctx)
	if err != nil {
		return err
	}

	params := domain.Object(fields...)

	if e.cfg.Moodle.ReturnFormat == domain.ReturnJSON {
		body, err := svc.CallRaw(ctx, function, params)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(body))
		return err
	}

	result, err := svc.Call(ctx, function, params)
	if err != nil {
		return err
	}

	return printJSON(result)
}

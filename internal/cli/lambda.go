package cli

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/heroku/sf-functions-go/internal/logging"
	"github.com/heroku/sf-functions-go/internal/runtime"
	"github.com/heroku/sf-functions-go/internal/session"
	"github.com/heroku/sf-functions-go/pkg/functions"
	"github.com/spf13/cobra"
)

// lambdaStart is replaced in tests.
var lambdaStart = func(handler interface{}) {
	lambda.Start(handler)
}

func newLambdaCmd(fn functions.Function, global *globalOptions) *cobra.Command {
	var sessionTTL = session.DefaultTTL

	lambdaCmd := &cobra.Command{
		Use:   "lambda <project-path>",
		Short: "Serves a function project as an AWS Lambda behind API Gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProject(fn, args[0])
			if err != nil {
				return err
			}

			logger, err := logging.New(global.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			pool := session.NewPool(sessionTTL, logger)
			defer pool.Close()

			invoker := runtime.NewInvoker(fn, cfg.SalesforceAPIVersion, pool, logger)
			// Make the handler available for Remote Procedure Call by AWS Lambda
			lambdaStart(invoker.HandleRequestApiGateway)
			return nil
		},
	}
	lambdaCmd.Flags().DurationVar(&sessionTTL, "session-ttl", session.DefaultTTL,
		"How long an idle org session is kept before its connections are closed")
	return lambdaCmd
}

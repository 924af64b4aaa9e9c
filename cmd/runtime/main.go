package main

import (
	"context"
	"fmt"

	"github.com/heroku/sf-functions-go/pkg/dataapi"
	"github.com/heroku/sf-functions-go/pkg/functions"
	"github.com/heroku/sf-functions-go/pkg/runner"
	"go.uber.org/zap"
)

type payload struct {
	AccountName string `json:"accountName"`
}

// exampleFunction creates an Account with a Contact in one unit of work, or lists
// Accounts when the event doesn't name one.
func exampleFunction(ctx context.Context, event functions.InvocationEvent, fnCtx functions.Context) (any, error) {
	logger := functions.Logger(ctx)

	var input payload
	if err := event.DecodeData(&input); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	dataAPI := fnCtx.Org.DataAPI
	if input.AccountName == "" {
		result, err := dataAPI.Query(ctx, "SELECT Id, Name FROM Account")
		if err != nil {
			return nil, err
		}
		logger.Info("queried accounts", zap.Int("totalSize", result.TotalSize))
		return result.Records, nil
	}

	unitOfWork := dataapi.NewUnitOfWork()
	account := unitOfWork.RegisterCreate(dataapi.Record{
		Type:   "Account",
		Fields: map[string]any{"Name": input.AccountName},
	})
	contact := unitOfWork.RegisterCreate(dataapi.Record{
		Type: "Contact",
		Fields: map[string]any{
			"LastName":  "Primary",
			"AccountId": account,
		},
	})

	ids, err := dataAPI.CommitUnitOfWork(ctx, unitOfWork)
	if err != nil {
		return nil, err
	}
	logger.Info("created account", zap.String("accountId", ids[account]))
	return map[string]string{
		"accountId": ids[account],
		"contactId": ids[contact],
	}, nil
}

func main() {
	runner.Start(exampleFunction)
}

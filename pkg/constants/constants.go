package constants

import "github.com/go-playground/validator/v10"

type contextKey string

const (
	TxKey     contextKey = "tx"
	DBKey     contextKey = "db"
	LoggerKey contextKey = "logger"
)

var Validate = validator.New(validator.WithRequiredStructEnabled())

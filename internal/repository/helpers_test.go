package repository

import "github.com/go-sql-driver/mysql"

func duplicateErr() error {
	return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
}

package logger

import (
	"log"
	"os"
)

var Log *log.Logger

func Init(logFilePath string) error {
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return err
	}

	Log = log.New(file, "pwnloop ", log.LstdFlags)
	Log.Println("logger initialized")
	return nil
}

// Printf logs when the logger is initialized and is a no-op otherwise, so
// library code and tests never need a log file.
func Printf(format string, args ...any) {
	if Log != nil {
		Log.Printf(format, args...)
	}
}

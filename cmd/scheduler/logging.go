package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const logsDir = "logs"

// logFile is the file the log is currently duplicated to.
var logFile *os.File

func todayLogPath() string {
	return filepath.Join(logsDir, time.Now().Format("2006-01-02")+".log")
}

// isValidLogPath validates the log file path
func isValidLogPath(path string) bool {
	dir, err := filepath.Abs(logsDir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(absPath, dir+string(filepath.Separator))
}

// setupLogging writes the log to stdout and to a daily file under logs/.
func setupLogging() {
	log.SetFlags(log.Ldate | log.Ltime)

	if err := os.MkdirAll(logsDir, 0750); err != nil {
		log.Printf("Error creating logs directory: %v", err)
		return
	}
	rotateLogFile()
	log.Printf("=== Starting new session ===")
}

// rotateLogFile switches to today's log file if the day changed.
func rotateLogFile() {
	path := todayLogPath()
	if !isValidLogPath(path) {
		log.Printf("Invalid log file path: %s", path)
		return
	}
	if logFile != nil && logFile.Name() == path {
		return
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600) // #nosec G304 - path is validated by isValidLogPath
	if err != nil {
		log.Printf("Error opening log file: %v", err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))

	if logFile != nil {
		if err := logFile.Close(); err != nil {
			log.Printf("Error closing log file: %v", err)
		}
		log.Printf("=== Log rotated to new file ===")
	}
	logFile = f
}

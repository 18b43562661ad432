package metrics

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type Logger interface {
	Log(info *MetricsInfo)
}

// StdoutLogger writes one JSON record per request through logrus.
type StdoutLogger struct {
	log *log.Entry
}

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{log: log.WithField("component", "metrics")}
}

func (l *StdoutLogger) Log(info *MetricsInfo) {
	infoStr, err := info.ToJSON()
	if err == nil {
		l.log.Info(strings.TrimSpace(infoStr))
	} else {
		l.log.Errorf("StdoutLogger: error: %v", err)
	}
}

const defaultQueueSize = 2000
const defaultLogWriters = 2
const defaultMaxLogFileSize = 1024 * 1024 * 1024
const defaultMaxLogFiles = 10

// FileLogger appends JSON records to rotated files under LogDir. Records
// are dropped when the queue is full.
type FileLogger struct {
	MetricsQueue   chan *MetricsInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int
	Verbose        bool
	log            *log.Entry
}

func NewFileLogger(logDir string, maxLogFileSize int64, maxLogFiles int, verbose bool) *FileLogger {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	logger := &FileLogger{
		MetricsQueue:   make(chan *MetricsInfo, defaultQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		Verbose:        verbose,
		log:            log.WithField("component", "metrics"),
	}

	for i := 0; i < defaultLogWriters; i++ {
		go logger.startLogWriter(i)
	}

	return logger
}

func (l *FileLogger) Log(info *MetricsInfo) {
	select {
	case l.MetricsQueue <- info:
	default:
		l.log.Warn("FileLogger: queue full, dropping metrics record")
	}
}

func (l *FileLogger) startLogWriter(idx int) {
	f, err := l.openLogFile(idx)
	if err != nil {
		l.log.Errorf("FileLogger%d: log open error: %v", idx, err)
		return
	}

	for info := range l.MetricsQueue {
		infoStr, err := info.ToJSON()
		if err != nil {
			l.log.Errorf("FileLogger%d: info.ToJSON() error: %v", idx, err)
			continue
		}
		f, err = l.tryRotateLogFile(f, idx)
		if err != nil {
			continue
		}
		if _, err := f.WriteString(infoStr); err != nil {
			l.log.Errorf("FileLogger%d: write error: %v", idx, err)
			continue
		}
		f.Sync()
	}
}

func (l *FileLogger) logFilePath(idx int) string {
	return path.Join(l.LogDir, fmt.Sprintf("log%d", idx))
}

func (l *FileLogger) openLogFile(idx int) (*os.File, error) {
	return os.OpenFile(l.logFilePath(idx), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (l *FileLogger) tryRotateLogFile(currFile *os.File, idx int) (*os.File, error) {
	info, err := currFile.Stat()
	if err != nil {
		l.log.Errorf("FileLogger%d: log rotation error: %v", idx, err)
		return currFile, nil
	}
	if info.Size() < l.MaxLogFileSize {
		return currFile, nil
	}

	rotatedLogFilePath, err := l.rotationTarget(idx)
	if err != nil {
		l.log.Errorf("FileLogger%d: log rotation error: %v", idx, err)
		return currFile, nil
	}

	currFile.Close()
	if err := os.Rename(l.logFilePath(idx), rotatedLogFilePath); err != nil {
		l.log.Errorf("FileLogger%d: log rotation error: %v", idx, err)
	} else if l.Verbose {
		l.log.Infof("FileLogger%d: log file rotated: %v", idx, rotatedLogFilePath)
	}

	f, err := l.openLogFile(idx)
	if err != nil {
		l.log.Errorf("FileLogger%d: log rotation error: %v", idx, err)
	}
	return f, err
}

// rotationTarget returns the first free log<idx>.<n> name, or the
// oldest rotated file once MaxLogFiles exist.
func (l *FileLogger) rotationTarget(idx int) (string, error) {
	for i := 0; i < l.MaxLogFiles; i++ {
		filePath := path.Join(l.LogDir, fmt.Sprintf("log%d.%d", idx, i))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			return filePath, nil
		}
	}

	entries, err := os.ReadDir(l.LogDir)
	if err != nil {
		return "", err
	}

	var oldest string
	oldestTime := time.Now()
	prefix := fmt.Sprintf("log%d.", idx)
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasPrefix(filepath.Base(e.Name()), prefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if fi.ModTime().Before(oldestTime) {
			oldest = e.Name()
			oldestTime = fi.ModTime()
		}
	}
	if oldest == "" {
		oldest = fmt.Sprintf("log%d.%d", idx, 0)
	}

	rotated := path.Join(l.LogDir, oldest)
	if l.Verbose {
		l.log.Infof("FileLogger%d: maximum number of log files reached, overwriting %s", idx, rotated)
	}
	if err := os.Remove(rotated); err != nil && !os.IsNotExist(err) {
		return "", err
	}
	return rotated, nil
}

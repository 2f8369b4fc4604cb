package logger

// Interface lets components depend on a narrow logging contract instead
// of the concrete *Logger, so tests can inject a recording fake.
type Interface interface {
	LogInfo(format string, args ...interface{})
	LogWarn(format string, args ...interface{})
	LogError(format string, args ...interface{})
	LogDebug(format string, args ...interface{})
}

// Standard adapts the package-level global logger to Interface.
type Standard struct{}

func NewStandard() Interface { return &Standard{} }

func (Standard) LogInfo(format string, args ...interface{})  { LogInfo(format, args...) }
func (Standard) LogWarn(format string, args ...interface{})  { LogWarn(format, args...) }
func (Standard) LogError(format string, args ...interface{}) { LogError(format, args...) }
func (Standard) LogDebug(format string, args ...interface{}) { LogDebug(format, args...) }

// Recorder is a test double that captures messages instead of printing them.
type Recorder struct {
	Info  []string
	Warn  []string
	Error []string
	Debug []string
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) LogInfo(format string, args ...interface{})  { r.Info = append(r.Info, format) }
func (r *Recorder) LogWarn(format string, args ...interface{})  { r.Warn = append(r.Warn, format) }
func (r *Recorder) LogError(format string, args ...interface{}) { r.Error = append(r.Error, format) }
func (r *Recorder) LogDebug(format string, args ...interface{}) { r.Debug = append(r.Debug, format) }

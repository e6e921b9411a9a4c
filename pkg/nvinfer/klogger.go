package nvinfer

import (
	"k8s.io/klog/v2"
)

// klogLogger routes native runtime messages into klog.
type klogLogger struct{}

var _ Logger = klogLogger{}

// NewKlogLogger returns a Logger that forwards native messages to klog.
// Verbose messages go to verbosity level 4 so they are hidden by default.
func NewKlogLogger() Logger {
	return klogLogger{}
}

func (klogLogger) Log(severity Severity, msg string) {
	switch severity {
	case SeverityInternalError, SeverityError:
		klog.ErrorDepth(1, msg)
	case SeverityWarning:
		klog.WarningDepth(1, msg)
	case SeverityInfo:
		klog.InfoDepth(1, msg)
	default:
		klog.V(4).InfoDepth(1, msg)
	}
}

package webhook

import "github.com/stretchr/testify/mock"

// MatchLogRecord creates a custom matcher for log record arguments in mocks
func MatchLogRecord(matcher func(LogRecord) bool) interface{} {
	return mock.MatchedBy(matcher)
}

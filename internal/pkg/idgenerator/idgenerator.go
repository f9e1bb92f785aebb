// nolint: gochecknoglobals
package idgenerator

import gonanoid "github.com/matoous/go-nanoid/v2"

const (
	RequestIDLength          = 15
	RunIDLength              = 20
	MessageIDLength          = 20
	EtcdNamespaceForTestsLen = 10
)

// alphabet used in ID generation.
var alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func RequestID() string {
	return gonanoid.MustGenerate(alphabet, RequestIDLength)
}

func RunID() string {
	return gonanoid.MustGenerate(alphabet, RunIDLength)
}

func MessageID() string {
	return gonanoid.MustGenerate(alphabet, MessageIDLength)
}

func EtcdNamespaceForTest() string {
	return gonanoid.MustGenerate(alphabet, EtcdNamespaceForTestsLen)
}

func Random(length int) string {
	return gonanoid.MustGenerate(alphabet, length)
}

package core

import (
	"strconv"
	"strings"
)

// KeyBuilder formats counter keys as {prefix}:{kind}:{scope}[:{bucket}].
type KeyBuilder struct {
	Prefix string
}

// NewKeyBuilder returns a KeyBuilder for the given prefix. Trailing colons are trimmed.
func NewKeyBuilder(prefix string) KeyBuilder {
	return KeyBuilder{Prefix: strings.TrimRight(prefix, ":")}
}

func (b KeyBuilder) join(kind Kind, parts ...string) string {
	var sb strings.Builder
	sb.WriteString(b.Prefix)
	sb.WriteByte(':')
	sb.WriteString(string(kind))
	for _, p := range parts {
		sb.WriteByte(':')
		sb.WriteString(p)
	}
	return sb.String()
}

// Queue returns the capacity counter key for a queue.
func (b KeyBuilder) Queue(queue string) string {
	return b.join(KindQueueLock, queue)
}

// QueueLease returns the auxiliary per-acquisition key for a queue token.
func (b KeyBuilder) QueueLease(queue, token string) string {
	return b.join(KindQueueLock, queue, "lease", token)
}

// QueueLeasePattern matches every lease key of a queue. Glob
// metacharacters in the prefix and queue name are escaped.
func (b KeyBuilder) QueueLeasePattern(queue string) string {
	escaped := KeyBuilder{Prefix: EscapeGlob(b.Prefix)}
	return escaped.join(KindQueueLock, EscapeGlob(queue), "lease", "*")
}

// Concurrency returns the in-flight counter key for a job type and scope.
func (b KeyBuilder) Concurrency(jobType, scope string) string {
	return b.join(KindJobConcurrency, jobType, scope)
}

// Rate returns the counter key for a job type and scope inside one window.
func (b KeyBuilder) Rate(jobType, scope string, bucket int64) string {
	return b.join(KindJobRate, jobType, scope, strconv.FormatInt(bucket, 10))
}

// EscapeGlob quotes the glob metacharacters in s so it matches literally.
func EscapeGlob(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			if out == nil {
				out = append(make([]byte, 0, len(s)+4), s[:i]...)
			}
			out = append(out, '\\')
		}
		if out != nil {
			out = append(out, s[i])
		}
	}
	if out == nil {
		return s
	}
	return string(out)
}

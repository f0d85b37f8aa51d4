package mqtt

import (
	"context"
)

// Writer publishes payloads.
type Writer interface {
	// WriteTopic publishes value to topic with options.
	WriteTopic(ctx context.Context, topic string, options WriteOptions, value []byte) error
}

// WriterFunc adapts a function to a Writer.
type WriterFunc func(ctx context.Context, topic string, options WriteOptions, value []byte) error

func (f WriterFunc) WriteTopic(ctx context.Context, topic string, options WriteOptions, value []byte) error {
	return f(ctx, topic, options, value)
}

// Error drops the value of a (value, error) pair, e.g. the result of Value.Write.
func Error[T any](_ T, err error) error {
	return err
}

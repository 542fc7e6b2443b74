package connector

import "context"

// Continuation receives the outcome of an asynchronous operation. It is
// invoked exactly once, on a goroutine owned by the connector.
type Continuation[T any] func(result T, err error)

// dispatch runs fn on its own goroutine and hands its outcome to cont.
func dispatch[T any](fn func() (T, error), cont Continuation[T]) {
	go func() {
		result, err := fn()
		if cont != nil {
			cont(result, err)
		}
	}()
}

// ConnectAsync binds the session and reports the outcome to done.
func (c *Connector) ConnectAsync(ctx context.Context, done func(error)) {
	dispatch(func() (struct{}, error) {
		return struct{}{}, c.Connect(ctx)
	}, func(_ struct{}, err error) {
		if done != nil {
			done(err)
		}
	})
}

// DisconnectAsync unbinds the session and reports the outcome to done.
func (c *Connector) DisconnectAsync(ctx context.Context, done func(error)) {
	dispatch(func() (struct{}, error) {
		return struct{}{}, c.Disconnect(ctx)
	}, func(_ struct{}, err error) {
		if done != nil {
			done(err)
		}
	})
}

// CountAsync is Count with the result delivered to cont.
func (c *Connector) CountAsync(ctx context.Context, modelName string, where Predicate, cont Continuation[int]) {
	dispatch(func() (int, error) {
		return c.Count(ctx, modelName, where)
	}, cont)
}

// AllAsync is All with the result delivered to cont.
func (c *Connector) AllAsync(ctx context.Context, modelName string, filter *Filter, cont Continuation[[]Record]) {
	dispatch(func() ([]Record, error) {
		return c.All(ctx, modelName, filter)
	}, cont)
}

// CreateAsync is Create with the new id delivered to cont.
func (c *Connector) CreateAsync(ctx context.Context, modelName string, record Record, cont Continuation[string]) {
	dispatch(func() (string, error) {
		return c.Create(ctx, modelName, record)
	}, cont)
}

// UpdateAttributesAsync is UpdateAttributes with the id delivered to cont.
func (c *Connector) UpdateAttributesAsync(ctx context.Context, modelName, id string, record Record, cont Continuation[string]) {
	dispatch(func() (string, error) {
		return c.UpdateAttributes(ctx, modelName, id, record)
	}, cont)
}

package queue

// Fifo implements a first-in first-out (FIFO) queue.
//
// Fifo is not safe for concurrent use; callers synchronize access themselves.
type Fifo[T any] struct {
	elements []T
}

// NewFifo creates a new Fifo struct with the specified initial size/capacity
// and returns a pointer to it.
func NewFifo[T any](initialSize int) *Fifo[T] {
	if initialSize < 0 {
		initialSize = 1
	}

	return &Fifo[T]{
		elements: make([]T, 0, initialSize),
	}
}

// Enqueue adds the specified element to the queue.
func (q *Fifo[T]) Enqueue(elem T) {
	q.elements = append(q.elements, elem)
}

// Dequeue removes and returns the next element in the queue.
//
// If the length of the Fifo is 0, then Dequeue will return the zero value and false.
func (q *Fifo[T]) Dequeue() (T, bool) {
	var zero T
	if len(q.elements) == 0 {
		return zero, false
	}

	elem := q.elements[0]
	q.elements[0] = zero
	q.elements = q.elements[1:]

	return elem, true
}

// Peek returns but does not remove the next element in the queue.
//
// If the length of the Fifo is 0, then Peek will return the zero value and false.
func (q *Fifo[T]) Peek() (T, bool) {
	if len(q.elements) == 0 {
		var zero T
		return zero, false
	}

	return q.elements[0], true
}

// Remove removes the first element for which match returns true.
// Remove returns the removed element and true, or the zero value and false if no element matched.
func (q *Fifo[T]) Remove(match func(T) bool) (T, bool) {
	for i, elem := range q.elements {
		if match(elem) {
			q.elements = append(q.elements[:i], q.elements[i+1:]...)
			return elem, true
		}
	}

	var zero T
	return zero, false
}

// Elements returns a copy of the elements in the queue, in FIFO order.
func (q *Fifo[T]) Elements() []T {
	elements := make([]T, len(q.elements))
	copy(elements, q.elements)
	return elements
}

// Len returns the number of elements in the queue.
func (q *Fifo[T]) Len() int {
	return len(q.elements)
}

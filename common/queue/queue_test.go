package queue_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-runtime/common/queue"
)

type pendingJob struct {
	id string
}

func drain[T any](q *queue.Fifo[T]) []T {
	var out []T
	for {
		elem, ok := q.Dequeue()
		if !ok {
			return out
		}
		out = append(out, elem)
	}
}

var _ = Describe("Fifo", func() {
	It("should report an empty queue with zero values", func() {
		q := queue.NewFifo[*pendingJob](-1)
		Expect(q.Len()).To(BeZero())

		job, ok := q.Peek()
		Expect(ok).To(BeFalse())
		Expect(job).To(BeNil())

		job, ok = q.Dequeue()
		Expect(ok).To(BeFalse())
		Expect(job).To(BeNil())
	})

	It("should hand jobs out in submission order", func() {
		q := queue.NewFifo[string](2)
		for _, id := range []string{"p1", "p2", "p3", "p4"} {
			q.Enqueue(id)
		}

		head, ok := q.Peek()
		Expect(ok).To(BeTrue())
		Expect(head).To(Equal("p1"))
		Expect(q.Len()).To(Equal(4))

		Expect(drain(q)).To(Equal([]string{"p1", "p2", "p3", "p4"}))
		Expect(q.Len()).To(BeZero())
	})

	It("should keep its order when submissions and dispatches interleave", func() {
		q := queue.NewFifo[string](1)
		q.Enqueue("p1")
		q.Enqueue("p2")

		id, _ := q.Dequeue()
		Expect(id).To(Equal("p1"))

		q.Enqueue("p3")
		id, _ = q.Dequeue()
		Expect(id).To(Equal("p2"))

		q.Enqueue("p4")
		Expect(q.Elements()).To(Equal([]string{"p3", "p4"}))
		Expect(drain(q)).To(Equal([]string{"p3", "p4"}))

		q.Enqueue("p5")
		head, ok := q.Peek()
		Expect(ok).To(BeTrue())
		Expect(head).To(Equal("p5"))
	})

	It("should return a snapshot that later changes do not affect", func() {
		q := queue.NewFifo[string](1)
		q.Enqueue("p1")

		snapshot := q.Elements()
		q.Enqueue("p2")
		snapshot[0] = "changed"

		Expect(q.Elements()).To(Equal([]string{"p1", "p2"}))
	})

	It("should remove a cancelled job without disturbing the others", func() {
		q := queue.NewFifo[*pendingJob](4)
		for _, id := range []string{"p1", "p2", "p3"} {
			q.Enqueue(&pendingJob{id: id})
		}

		removed, ok := q.Remove(func(job *pendingJob) bool { return job.id == "p2" })
		Expect(ok).To(BeTrue())
		Expect(removed.id).To(Equal("p2"))

		_, ok = q.Remove(func(job *pendingJob) bool { return job.id == "p9" })
		Expect(ok).To(BeFalse())

		ids := make([]string, 0, 2)
		for _, job := range drain(q) {
			ids = append(ids, job.id)
		}
		Expect(ids).To(Equal([]string{"p1", "p3"}))
	})
})

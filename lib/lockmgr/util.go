package lockmgr

// removeWaiter removes w from the wait queue, keeping the order of the others.
func removeWaiter(queue []*waiter, w *waiter) []*waiter {
	for i, other := range queue {
		if other == w {
			return append(queue[:i], queue[i+1:]...)
		}
	}
	return queue
}

package mesh

import "time"

// submit is step one of the dispatch queue: wake idle links, then send or
// queue.
func (c *Coordinator) submit(cmd []byte) {
	c.reconnectIdle()
	c.enqueueOrSend(cmd)
}

// reconnectIdle re-issues connects for entries that are down and not
// waiting out a backoff. With nothing connected at all it restarts
// discovery instead.
func (c *Coordinator) reconnectIdle() {
	connected := 0
	for _, en := range c.order {
		if en.connected {
			connected++
		}
	}
	if connected == 0 {
		c.rediscover()
		return
	}

	for _, en := range c.order {
		if !en.connected && !en.connecting && en.retry == nil {
			c.connect(en)
		}
	}
}

// readyForSend reports whether there is at least one entry and every entry
// is ready. The same predicate gates direct sends and drains so queued
// commands never get overtaken.
func (c *Coordinator) readyForSend() bool {
	if len(c.order) == 0 {
		return false
	}
	for _, en := range c.order {
		if !en.ready {
			return false
		}
	}
	return true
}

// enqueueOrSend transmits cmd now or appends it to the pending queue. A
// command only goes out directly when nothing is in flight, no drain is
// armed and nothing is already waiting.
func (c *Coordinator) enqueueOrSend(cmd []byte) {
	ready := c.readyForSend()
	if !ready || c.sending || c.drainScheduled || len(c.pending) > 0 {
		c.pending = append(c.pending, cmd)
		if ready && !c.drainScheduled {
			c.scheduleDrain(c.delay)
		}
		return
	}

	c.sending = true
	c.transmit(cmd)
	c.scheduleDrain(c.delay)
}

// scheduleDrain arms the drain timer, replacing any live one.
func (c *Coordinator) scheduleDrain(d time.Duration) {
	if c.drainTimer != nil {
		c.drainTimer.Stop()
	}
	c.drainScheduled = true
	c.drainTimer = c.after(d, drainFired{})
}

// drain clears the in-flight flag and replays the whole queue in order.
// Only the first command goes out; the rest re-queue behind the new
// in-flight batch and wait for the next drain.
func (c *Coordinator) drain() {
	c.sending = false
	c.drainScheduled = false
	c.drainTimer = nil

	if len(c.pending) == 0 {
		return
	}
	batch := c.pending
	c.pending = nil
	for _, cmd := range batch {
		c.enqueueOrSend(cmd)
	}
}

// transmit encrypts cmd separately for every ready entry and writes the
// two halves of each frame.
func (c *Coordinator) transmit(cmd []byte) {
	for _, en := range c.order {
		if !en.ready {
			continue
		}

		frame, err := EncodeFrame(c.key, c.sequence(), cmd)
		if err != nil {
			c.logError("encoding frame", err)
			continue
		}
		data, err := frame.MarshalBinary()
		if err != nil {
			c.logError("encoding frame", err)
			continue
		}

		low, high := SplitFrame(data)
		if err := en.low.WriteWithoutResponse(low); err != nil {
			c.logWarn("write failed", "id", en.id, "characteristic", "low", "error", err)
			continue
		}
		if err := en.high.WriteWithoutResponse(high); err != nil {
			c.logWarn("write failed", "id", en.id, "characteristic", "high", "error", err)
		}
	}
}

package jam

import "fmt"

// GetThread traverses the reply_to/reply_1st/reply_next chains starting at
// root, depth-first with children visited in post order (i.e. the order
// reply_next links them, which is insertion order since posting always
// appends to the tail of the chain). Cycles are detected defensively via a
// visited set bounded by the base's message count; correct data never
// contains one.
func (b *Base) GetThread(root int) ([]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.getThreadLocked(root)
}

func (b *Base) getThreadLocked(root int) ([]int, error) {
	count := b.fixedHeaderLocked().ActiveMsgs
	visited := make(map[int]bool, count)
	var out []int

	var walk func(msgNum int) error
	walk = func(msgNum int) error {
		if msgNum <= 0 {
			return nil
		}
		if visited[msgNum] {
			return fmt.Errorf("jam: cycle detected in reply chain at message %d", msgNum)
		}
		visited[msgNum] = true
		out = append(out, msgNum)

		hdr, err := b.readMessageHeaderLocked(msgNum)
		if err != nil {
			return fmt.Errorf("jam: thread traversal: %w", err)
		}

		child := int(hdr.Reply1st)
		for child != 0 {
			if err := walk(child); err != nil {
				return err
			}
			childHdr, err := b.readMessageHeaderLocked(child)
			if err != nil {
				return fmt.Errorf("jam: thread traversal: %w", err)
			}
			child = int(childHdr.ReplyNext)
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}

// fixedHeaderLocked returns the cached fixed header; callers must hold at
// least a read lock.
func (b *Base) fixedHeaderLocked() *FixedHeaderInfo {
	if b.fixedHeader == nil {
		return &FixedHeaderInfo{}
	}
	return b.fixedHeader
}

// LinkReply updates the parent's reply chain to include child: sets
// reply_1st if the parent currently has no replies, otherwise walks
// reply_next from reply_1st to the tail and appends child there. Concurrent
// posts are serialized by the base's exclusive file lock (internal/jam's
// .bsy lock), so there is no tie-breaker needed for "simultaneous" replies.
func (b *Base) LinkReply(parentNum, childNum int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linkReplyLocked(parentNum, childNum)
}

func (b *Base) linkReplyLocked(parentNum, childNum int) error {
	parent, err := b.readMessageHeaderLocked(parentNum)
	if err != nil {
		return fmt.Errorf("jam: link reply: %w", err)
	}

	if parent.Reply1st == 0 {
		parent.Reply1st = uint32(childNum)
		return b.updateMessageHeaderLocked(parentNum, parent)
	}

	tail := int(parent.Reply1st)
	visited := map[int]bool{tail: true}
	for {
		tailHdr, err := b.readMessageHeaderLocked(tail)
		if err != nil {
			return fmt.Errorf("jam: link reply: %w", err)
		}
		if tailHdr.ReplyNext == 0 {
			tailHdr.ReplyNext = uint32(childNum)
			return b.updateMessageHeaderLocked(tail, tailHdr)
		}
		next := int(tailHdr.ReplyNext)
		if visited[next] {
			return fmt.Errorf("jam: cycle detected appending reply to message %d", parentNum)
		}
		visited[next] = true
		tail = next
	}
}

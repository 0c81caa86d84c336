package jam

import "testing"

// TestThreadShape covers scenario 4 from the message-base test matrix: M2
// and M3 reply to M1, M4 replies to M2. get_thread(M1) must walk depth
// first through reply_1st before advancing reply_next, yielding
// [M1, M2, M4, M3].
func TestThreadShape(t *testing.T) {
	b := openTestBase(t)

	post := func(replyTo int, subject string) int {
		msg := NewMessage()
		msg.From = "User"
		msg.To = "All"
		msg.Subject = subject
		msg.Text = "body"
		msg.ReplyTo = replyTo
		num, err := b.WriteMessage(msg)
		if err != nil {
			t.Fatalf("WriteMessage(%s): %v", subject, err)
		}
		return num
	}

	m1 := post(0, "M1")
	m2 := post(m1, "M2")
	m3 := post(m1, "M3")
	m4 := post(m2, "M4")

	thread, err := b.GetThread(m1)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}

	want := []int{m1, m2, m4, m3}
	if len(thread) != len(want) {
		t.Fatalf("thread = %v, want %v", thread, want)
	}
	for i, num := range thread {
		if num != want[i] {
			t.Errorf("thread[%d] = %d, want %d (full: %v)", i, num, want[i], thread)
		}
	}
}

func TestThreadSingleMessageHasNoReplies(t *testing.T) {
	b := openTestBase(t)

	msg := NewMessage()
	msg.From = "User"
	msg.To = "All"
	msg.Subject = "Solo"
	msg.Text = "body"
	m1, err := b.WriteMessage(msg)
	if err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	thread, err := b.GetThread(m1)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if len(thread) != 1 || thread[0] != m1 {
		t.Errorf("thread = %v, want [%d]", thread, m1)
	}
}

func TestLinkReplyAppendsToExistingTail(t *testing.T) {
	b := openTestBase(t)

	post := func(replyTo int, subject string) int {
		msg := NewMessage()
		msg.From = "User"
		msg.To = "All"
		msg.Subject = subject
		msg.Text = "body"
		msg.ReplyTo = replyTo
		num, err := b.WriteMessage(msg)
		if err != nil {
			t.Fatalf("WriteMessage(%s): %v", subject, err)
		}
		return num
	}

	m1 := post(0, "M1")
	m2 := post(m1, "M2")
	m3 := post(m1, "M3")

	parent, err := b.ReadMessageHeader(m1)
	if err != nil {
		t.Fatalf("ReadMessageHeader: %v", err)
	}
	if int(parent.Reply1st) != m2 {
		t.Errorf("Reply1st = %d, want %d", parent.Reply1st, m2)
	}

	firstReply, err := b.ReadMessageHeader(m2)
	if err != nil {
		t.Fatalf("ReadMessageHeader: %v", err)
	}
	if int(firstReply.ReplyNext) != m3 {
		t.Errorf("ReplyNext = %d, want %d", firstReply.ReplyNext, m3)
	}
}

package ftn

import (
	"fmt"
	"strings"
	"time"

	"github.com/stlalpha/impulse-bbs/internal/jam"
)

// ImportResult summarizes one packet import.
type ImportResult struct {
	Imported int
	Skipped  int
	Link     jam.LinkResult
}

// ImportPacket tosses every message in msgs into base, then resyncs reply
// threading across the whole batch. A packed message carries its parent by
// REPLY (the parent's MSGID, assigned on the originating system), not by a
// local message number, so it can't be linked incrementally the way a
// locally composed reply is: the parent may not even exist in base yet when
// an earlier message in the same packet is written. Base.Link's MSGID/REPLY
// scan runs once after the whole packet is on disk and resolves all of it
// in one pass.
func ImportPacket(base *jam.Base, bbsName string, msgs []*PackedMessage) (ImportResult, error) {
	var result ImportResult

	for _, pm := range msgs {
		body := ParsePackedMessageBody(pm.Body)

		msgType := jam.MsgTypeNetmailMsg
		if body.Area != "" {
			msgType = jam.MsgTypeEchomailMsg
		}

		dt, err := ParseFTNDateTime(pm.DateTime)
		if err != nil {
			dt = time.Now()
		}

		msg := jam.NewMessage()
		msg.From = pm.From
		msg.To = pm.To
		msg.Subject = pm.Subject
		msg.DateTime = dt
		msg.Text = body.Text
		msg.Kludges = body.Kludges
		if len(body.SeenBy) > 0 {
			msg.SeenBy = strings.Join(body.SeenBy, " ")
		}
		if len(body.Path) > 0 {
			msg.Path = strings.Join(body.Path, " ")
		}
		for _, k := range body.Kludges {
			if id, ok := strings.CutPrefix(k, "MSGID: "); ok {
				msg.MsgID = id
			}
			if id, ok := strings.CutPrefix(k, "REPLY: "); ok {
				msg.ReplyID = id
			}
		}

		if _, err := base.WriteMessageExt(msg, msgType, body.Area, bbsName, ""); err != nil {
			result.Skipped++
			continue
		}
		result.Imported++
	}

	if result.Imported == 0 {
		return result, nil
	}

	linkResult, err := base.Link()
	if err != nil {
		return result, fmt.Errorf("ftn: resync threading after import: %w", err)
	}
	result.Link = linkResult
	return result, nil
}

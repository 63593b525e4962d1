package wire

import (
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
	"github.com/valyala/bytebufferpool"
)

type frame struct {
	Kind     broadcast.Kind  `json:"kind"`
	SenderID string          `json:"senderId"`
	Seq      uint64          `json:"seq"`
	SentAt   time.Time       `json:"sentAt"`
	Payload  json.RawMessage `json:"payload"`
}

// Encode serializes an envelope into a JSON text frame.
func Encode(env broadcast.Envelope) ([]byte, error) {
	if env.Payload == nil {
		return nil, crerr.Newf("encode %s envelope: payload is nil", env.Kind)
	}
	if env.Kind == "" {
		env.Kind = env.Payload.Kind()
	}
	if env.Kind != env.Payload.Kind() {
		return nil, crerr.Newf("encode envelope: kind %s does not match payload %s", env.Kind, env.Payload.Kind())
	}

	payload, err := sonic.Marshal(env.Payload)
	if err != nil {
		return nil, crerr.Wrapf(err, "marshal %s payload", env.Kind)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(frame{
		Kind:     env.Kind,
		SenderID: env.SenderID,
		Seq:      env.Seq,
		SentAt:   env.SentAt,
		Payload:  payload,
	}); err != nil {
		return nil, crerr.Wrap(err, "encode envelope")
	}

	return append([]byte(nil), buf.B...), nil
}

// Decode parses a frame produced by Encode.
func Decode(data []byte) (broadcast.Envelope, error) {
	var f frame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return broadcast.Envelope{}, crerr.Wrap(err, "decode envelope")
	}
	if f.SenderID == "" {
		return broadcast.Envelope{}, crerr.New("decode envelope: sender id is required")
	}

	msg, err := decodePayload(f.Kind, f.Payload)
	if err != nil {
		return broadcast.Envelope{}, err
	}

	return broadcast.Envelope{
		Kind:     f.Kind,
		SenderID: f.SenderID,
		Seq:      f.Seq,
		SentAt:   f.SentAt,
		Payload:  msg,
	}, nil
}

func decodePayload(kind broadcast.Kind, raw []byte) (broadcast.Message, error) {
	switch kind {
	case broadcast.KindScoreUpdate:
		return decodeAs[broadcast.ScoreUpdate](kind, raw)
	case broadcast.KindProfileUpdate:
		return decodeAs[broadcast.ProfileUpdate](kind, raw)
	case broadcast.KindPriceUpdate:
		return decodeAs[broadcast.PriceUpdate](kind, raw)
	case broadcast.KindAffiliatePostShared:
		return decodeAs[broadcast.AffiliatePostShared](kind, raw)
	case broadcast.KindAffiliatePurchase:
		return decodeAs[broadcast.AffiliatePurchase](kind, raw)
	case broadcast.KindPlayerJoined:
		return decodeAs[broadcast.PlayerJoined](kind, raw)
	case broadcast.KindTaskCompletion:
		return decodeAs[broadcast.TaskCompletion](kind, raw)
	case broadcast.KindPlayerLeft:
		return decodeAs[broadcast.PlayerLeft](kind, raw)
	default:
		return nil, crerr.Wrapf(broadcast.ErrUnknownKind, "decode envelope kind %q", kind)
	}
}

func decodeAs[T broadcast.Message](kind broadcast.Kind, raw []byte) (broadcast.Message, error) {
	var msg T
	if len(raw) == 0 {
		return nil, crerr.Newf("decode %s payload: empty payload", kind)
	}
	if err := sonic.Unmarshal(raw, &msg); err != nil {
		return nil, crerr.Wrapf(err, "decode %s payload", kind)
	}
	return msg, nil
}

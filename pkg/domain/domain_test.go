package domain

import (
	"testing"
	"time"
)

func TestQueryValidate(t *testing.T) {
	cases := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"minimal", Query{Table: TableUsers}, false},
		{"filtered ordered limited", Query{Table: TableTweets, Filter: Filter{"created_by": "u1"}, Order: &Order{Field: "created_at", Descending: true}, Limit: 10}, false},
		{"missing table", Query{}, true},
		{"empty filter field", Query{Table: TableUsers, Filter: Filter{"": "x"}}, true},
		{"empty order field", Query{Table: TableUsers, Order: &Order{}}, true},
		{"negative limit", Query{Table: TableUsers, Limit: -1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.query.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestByID(t *testing.T) {
	q := ByID(TableTweets, "t1")
	if q.Table != TableTweets || q.Filter["id"] != "t1" {
		t.Fatalf("unexpected query %+v", q)
	}
	if err := q.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestRowRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	user := User{
		ID:        "u1",
		Name:      "Ada",
		Username:  "ada42",
		Email:     "ada@example.com",
		PhotoURL:  "/assets/twitter-avatar.jpg",
		Following: []string{"u2"},
		CreatedAt: now,
	}
	row, err := EncodeRow(user)
	if err != nil {
		t.Fatalf("EncodeRow: %v", err)
	}
	if RowID(row) != "u1" {
		t.Fatalf("RowID = %q", RowID(row))
	}
	decoded, err := DecodeRow[User](row)
	if err != nil {
		t.Fatalf("DecodeRow: %v", err)
	}
	if decoded.Username != "ada42" || !decoded.CreatedAt.Equal(now) {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if decoded.Bio != nil || decoded.UpdatedAt != nil {
		t.Fatalf("expected nil optional fields, got %+v", decoded)
	}
}

func TestCloneRowDetaches(t *testing.T) {
	row := Row{"id": "t1", "user_likes": []any{"u1"}}
	cloned := CloneRow(row)
	cloned["id"] = "t2"
	cloned["user_likes"].([]any)[0] = "u9"
	if row["id"] != "t1" || row["user_likes"].([]any)[0] != "u1" {
		t.Fatalf("clone mutated original: %+v", row)
	}
	if CloneRow(nil) != nil {
		t.Fatalf("expected nil clone of nil row")
	}
}

func TestEventPayload(t *testing.T) {
	var undefined EventPayload
	if undefined.Defined() || undefined.Raw() != nil {
		t.Fatalf("zero payload should be undefined")
	}
	if _, ok := DecodePayload[User](undefined); ok {
		t.Fatalf("decode of undefined payload should fail")
	}

	payload, err := NewEventPayloadFromRow(Row{"id": "u1", "username": "ada42"})
	if err != nil {
		t.Fatalf("NewEventPayloadFromRow: %v", err)
	}
	user, ok := DecodePayload[User](payload)
	if !ok || user.Username != "ada42" {
		t.Fatalf("decode payload: ok=%v user=%+v", ok, user)
	}

	raw := payload.Raw()
	raw[0] = 'x'
	if payload.Raw()[0] == 'x' {
		t.Fatalf("Raw must return a detached copy")
	}

	if _, ok := DecodePayload[User](NewEventPayload([]byte("{bad"))); ok {
		t.Fatalf("decode of malformed payload should fail")
	}
}

func TestEventPayloadJSONRoundTrip(t *testing.T) {
	ev := Event{Table: TableTweets, Action: ActionUpdate, RowID: "t1"}
	payload, err := NewEventPayloadFromRow(Row{"id": "t1", "user_replies": float64(2)})
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	ev.Payload = payload

	row, ok := DecodePayload[Row](ev.Payload)
	if !ok || row["id"] != "t1" {
		t.Fatalf("decode event payload: %v %+v", ok, row)
	}

	var null EventPayload
	raw, err := null.MarshalJSON()
	if err != nil || string(raw) != "null" {
		t.Fatalf("marshal undefined payload: %s %v", raw, err)
	}
	var parsed EventPayload
	if err := parsed.UnmarshalJSON([]byte("null")); err != nil || parsed.Defined() {
		t.Fatalf("unmarshal null payload: %+v %v", parsed, err)
	}
}

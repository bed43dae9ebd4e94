// File: internal/store/firestoredb/requests.go
package firestoredb

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

func decodeRequest(snap *firestore.DocumentSnapshot) (*domain.Request, error) {
	var d requestDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode request %s: %w", snap.Ref.ID, err)
	}
	r := d.toDomain(snap.Ref.ID)
	return &r, nil
}

func newRequestDoc(r *domain.Request) requestDoc {
	return requestDoc{
		PatientID:   r.PatientID,
		PatientName: r.PatientName,
		BloodGroup:  string(r.BloodGroup),
		Urgency:     string(r.Urgency),
		Hospital:    r.Hospital,
		Notes:       r.Notes,
		Status:      string(domain.StatusPending),
		Location:    toGeoDoc(r.Location),
	}
}

func (c *Client) CreateRequest(ctx context.Context, req *domain.Request) error {
	ref := c.requests().NewDoc()
	wr, err := ref.Create(ctx, newRequestDoc(req))
	if err != nil {
		return mapErr(err, "create", "request", ref.ID)
	}
	req.ID = ref.ID
	req.Status = domain.StatusPending
	req.CreatedAt = wr.UpdateTime
	req.UpdatedAt = wr.UpdateTime
	return nil
}

func (c *Client) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	snap, err := c.requests().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapErr(err, "get", "request", id)
	}
	return decodeRequest(snap)
}

func (c *Client) UpdateRequest(ctx context.Context, id string, patch store.RequestPatch) error {
	if _, err := c.requests().Doc(id).Update(ctx, requestUpdates(patch)); err != nil {
		return mapErr(err, "update", "request", id)
	}
	return nil
}

func (c *Client) requestQuery(q store.RequestQuery) firestore.Query {
	query := c.requests().Query
	if q.PatientID != "" {
		query = query.Where("patientId", "==", q.PatientID)
	}
	if len(q.Statuses) == 1 {
		query = query.Where("status", "==", string(q.Statuses[0]))
	} else if len(q.Statuses) > 1 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status", "in", statuses)
	}
	if q.CreatedBefore != nil {
		query = query.Where("createdAt", "<", *q.CreatedBefore)
	}
	return query
}

func collectRequests(it *firestore.DocumentIterator) ([]domain.Request, error) {
	defer it.Stop()
	var out []domain.Request
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, mapErr(err, "list", "requests", "")
		}
		r, err := decodeRequest(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
}

func (c *Client) ListRequests(ctx context.Context, q store.RequestQuery) ([]domain.Request, error) {
	return collectRequests(c.requestQuery(q).Documents(ctx))
}

func (c *Client) messages(requestID string) *firestore.CollectionRef {
	return c.requests().Doc(requestID).Collection(messagesCollection)
}

func (c *Client) AddMessage(ctx context.Context, requestID string, msg *domain.Message) error {
	if _, err := c.requests().Doc(requestID).Get(ctx); err != nil {
		return mapErr(err, "get", "request", requestID)
	}
	if msg.Type == "" {
		msg.Type = domain.MessageText
	}
	ref := c.messages(requestID).NewDoc()
	wr, err := ref.Create(ctx, messageDoc{
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Text:       msg.Text,
		Type:       string(msg.Type),
		Location:   toGeoDoc(msg.Location),
		PickupCode: msg.PickupCode,
	})
	if err != nil {
		return mapErr(err, "create", "message", ref.ID)
	}
	msg.ID = ref.ID
	msg.RequestID = requestID
	msg.CreatedAt = wr.UpdateTime
	return nil
}

func (c *Client) messageQuery(requestID string) firestore.Query {
	return c.messages(requestID).OrderBy("createdAt", firestore.Asc)
}

func collectMessages(it *firestore.DocumentIterator, requestID string) ([]domain.Message, error) {
	defer it.Stop()
	var out []domain.Message
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, mapErr(err, "list", "messages", requestID)
		}
		var d messageDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode message %s: %w", snap.Ref.ID, err)
		}
		out = append(out, d.toDomain(snap.Ref.ID, requestID))
	}
}

func (c *Client) ListMessages(ctx context.Context, requestID string) ([]domain.Message, error) {
	return collectMessages(c.messageQuery(requestID).Documents(ctx), requestID)
}

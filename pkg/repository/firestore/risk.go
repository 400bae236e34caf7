package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RisksCollection is the collection name used without a prefix
const RisksCollection = "risks"

type riskDocument struct {
	ID         int64     `firestore:"id"`
	Asset      string    `firestore:"asset"`
	Threat     string    `firestore:"threat"`
	Likelihood int       `firestore:"likelihood"`
	Impact     int       `firestore:"impact"`
	Score      int       `firestore:"score"`
	Level      string    `firestore:"level"`
	CreatedAt  time.Time `firestore:"created_at"`
}

func (d *riskDocument) toModel() *model.Risk {
	return &model.Risk{
		ID:         d.ID,
		Asset:      d.Asset,
		Threat:     d.Threat,
		Likelihood: d.Likelihood,
		Impact:     d.Impact,
		Score:      d.Score,
		Level:      types.RiskLevel(d.Level),
		CreatedAt:  d.CreatedAt,
	}
}

type riskRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newRiskRepository(client *firestore.Client) *riskRepository {
	return &riskRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *riskRepository) risksCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_" + RisksCollection
	}
	return RisksCollection
}

func (r *riskRepository) counterCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_counters"
	}
	return "counters"
}

func (r *riskRepository) riskCounterDoc() string {
	return "risk_counter"
}

func (r *riskRepository) getNextID(ctx context.Context) (int64, error) {
	counterRef := r.client.Collection(r.counterCollection()).Doc(r.riskCounterDoc())

	var nextID int64
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(counterRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				nextID = 1
				return tx.Set(counterRef, map[string]interface{}{
					"value": nextID,
				})
			}
			return goerr.Wrap(err, "failed to get counter")
		}

		currentValue, err := doc.DataAt("value")
		if err != nil {
			return goerr.Wrap(err, "failed to get counter value")
		}
		current, ok := currentValue.(int64)
		if !ok {
			return goerr.New("unexpected counter value type", goerr.V("value", currentValue))
		}

		nextID = current + 1
		return tx.Update(counterRef, []firestore.Update{
			{Path: "value", Value: nextID},
		})
	})

	if err != nil {
		return 0, goerr.Wrap(err, "failed to get next ID")
	}

	return nextID, nil
}

func (r *riskRepository) Create(ctx context.Context, risk *model.Risk) (*model.Risk, error) {
	id, err := r.getNextID(ctx)
	if err != nil {
		return nil, err
	}

	doc := &riskDocument{
		ID:         id,
		Asset:      risk.Asset,
		Threat:     risk.Threat,
		Likelihood: risk.Likelihood,
		Impact:     risk.Impact,
		Score:      risk.Score,
		Level:      risk.Level.String(),
		CreatedAt:  time.Now().UTC(),
	}

	docRef := r.client.Collection(r.risksCollection()).Doc(fmt.Sprintf("%d", id))
	if _, err := docRef.Set(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to create risk", goerr.V("id", id))
	}

	return doc.toModel(), nil
}

func (r *riskRepository) Get(ctx context.Context, id int64) (*model.Risk, error) {
	docRef := r.client.Collection(r.risksCollection()).Doc(fmt.Sprintf("%d", id))
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "risk not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V("id", id))
	}

	var riskDoc riskDocument
	if err := doc.DataTo(&riskDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal risk", goerr.V("id", id))
	}

	return riskDoc.toModel(), nil
}

func (r *riskRepository) List(ctx context.Context) ([]*model.Risk, error) {
	query := r.client.Collection(r.risksCollection()).OrderBy("id", firestore.Asc)
	return r.collect(query.Documents(ctx))
}

// ListByLevel needs the (level ASC, id ASC) composite index created by the migrate command
func (r *riskRepository) ListByLevel(ctx context.Context, level types.RiskLevel) ([]*model.Risk, error) {
	query := r.client.Collection(r.risksCollection()).
		Where("level", "==", level.String()).
		OrderBy("id", firestore.Asc)
	return r.collect(query.Documents(ctx))
}

func (r *riskRepository) collect(iter *firestore.DocumentIterator) ([]*model.Risk, error) {
	defer iter.Stop()

	risks := []*model.Risk{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate risks")
		}

		var riskDoc riskDocument
		if err := doc.DataTo(&riskDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal risk", goerr.V("doc_id", doc.Ref.ID))
		}

		risks = append(risks, riskDoc.toModel())
	}

	return risks, nil
}

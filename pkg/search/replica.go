package search

import (
	"context"
	"errors"
	"time"

	"devsocial/pkg/broker"
	"devsocial/pkg/envelope"
	"devsocial/pkg/models"
	"devsocial/pkg/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	actionIndexPut    = "index.put"
	actionIndexDelete = "index.delete"
)

type indexChange struct {
	PostID int64 `json:"postId"`
}

// Replica keeps a local index in step with the other instances sharing the
// record store. Local writes are applied and announced on the broker; a
// remote put reloads the post from the store before indexing it.
type Replica struct {
	*Index
	broker   *broker.Broker
	posts    repository.PostRepository
	channel  string
	instance string
	log      *zap.Logger
}

func NewReplica(idx *Index, b *broker.Broker, posts repository.PostRepository, channel string, log *zap.Logger) *Replica {
	return &Replica{
		Index:    idx,
		broker:   b,
		posts:    posts,
		channel:  channel,
		instance: uuid.NewString(),
		log:      log.Named("index-replica"),
	}
}

func (r *Replica) Start() error {
	return r.broker.Subscribe(r.channel, r.apply)
}

func (r *Replica) Put(p models.Post) error {
	if err := r.Index.Put(p); err != nil {
		return err
	}
	r.announce(actionIndexPut, p.ID)
	return nil
}

func (r *Replica) Delete(id int64) error {
	if err := r.Index.Delete(id); err != nil {
		return err
	}
	r.announce(actionIndexDelete, id)
	return nil
}

func (r *Replica) announce(action string, id int64) {
	env, err := envelope.NewEvent(action, "", indexChange{PostID: id})
	if err != nil {
		r.log.Warn("encode index change failed", zap.Int64("post_id", id), zap.Error(err))
		return
	}
	env.Origin = r.instance
	if err := r.broker.Publish(r.channel, env); err != nil {
		r.log.Warn("index change publish failed", zap.Int64("post_id", id), zap.Error(err))
	}
}

func (r *Replica) apply(env envelope.Envelope) {
	if env.Origin == r.instance {
		return
	}
	change, err := envelope.ParseData[indexChange](env)
	if err != nil || change.PostID <= 0 {
		r.log.Warn("discarded index change", zap.String("action", env.Action))
		return
	}

	switch env.Action {
	case actionIndexDelete:
		err = r.Index.Delete(change.PostID)
	case actionIndexPut:
		err = r.reload(change.PostID)
	default:
		return
	}
	if err != nil {
		r.log.Error("apply index change failed",
			zap.String("action", env.Action), zap.Int64("post_id", change.PostID), zap.Error(err))
	}
}

func (r *Replica) reload(id int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := r.posts.FindByID(ctx, id, 0)
	if errors.Is(err, repository.ErrNotFound) {
		return r.Index.Delete(id)
	}
	if err != nil {
		return err
	}
	return r.Index.Put(*p)
}

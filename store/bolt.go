package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/cloudx-io/slotauction/core"
)

var (
	productsBucket = []byte("products")
	bidsBucket     = []byte("bids")
	resultsBucket  = []byte("results")
)

// BoltRepository stores JSON documents in a single bbolt file. Bids live in one nested
// bucket per product keyed by an increasing sequence, so they list in append order.
type BoltRepository struct {
	db *bolt.DB
}

func OpenBolt(path string) (*BoltRepository, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt store %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{productsBucket, bidsBucket, resultsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create bolt buckets")
	}
	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) SaveProduct(_ context.Context, p core.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encode product")
	}
	return errors.Wrap(r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(productsBucket).Put([]byte(p.ID), data)
	}), "save product")
}

func (r *BoltRepository) ListProducts(_ context.Context) ([]core.Product, error) {
	var products []core.Product
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(productsBucket).ForEach(func(_, v []byte) error {
			var p core.Product
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			products = append(products, p)
			return nil
		})
	})
	return products, errors.Wrap(err, "list products")
}

func (r *BoltRepository) AppendBid(_ context.Context, bid core.Bid) error {
	data, err := json.Marshal(bid)
	if err != nil {
		return errors.Wrap(err, "encode bid")
	}
	return errors.Wrap(r.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bidsBucket).CreateBucketIfNotExists([]byte(bid.ProductID))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	}), "append bid")
}

func (r *BoltRepository) ListBids(_ context.Context, productID string) ([]core.Bid, error) {
	var bids []core.Bid
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bidsBucket).Bucket([]byte(productID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var bid core.Bid
			if err := json.Unmarshal(v, &bid); err != nil {
				return err
			}
			bids = append(bids, bid)
			return nil
		})
	})
	return bids, errors.Wrap(err, "list bids")
}

func (r *BoltRepository) SaveResult(_ context.Context, result core.ProductResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "encode result")
	}
	return errors.Wrap(r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(resultsBucket)
		if b.Get([]byte(result.ProductID)) != nil {
			return nil
		}
		return b.Put([]byte(result.ProductID), data)
	}), "save result")
}

func (r *BoltRepository) LoadResult(_ context.Context, productID string) (core.ProductResult, bool, error) {
	var (
		result core.ProductResult
		found  bool
	)
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(resultsBucket).Get([]byte(productID))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &result)
	})
	return result, found, errors.Wrap(err, "load result")
}

func (r *BoltRepository) Close() error {
	return r.db.Close()
}

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/cloudx-io/slotauction/core"
)

type productModel struct {
	ID                  string `gorm:"primaryKey;size:64"`
	Title               string `gorm:"size:255"`
	Description         string
	BasePrice           float64
	K                   int
	StartTime           time.Time
	EndTime             time.Time
	Alpha               float64
	Beta                float64
	Gamma               float64
	Status              string `gorm:"size:16;index"`
	CurrentHighestPrice float64
	UpdatedAt           time.Time
}

func (productModel) TableName() string { return "products" }

type bidLogModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	ProductID    string `gorm:"size:64;index"`
	UserID       string `gorm:"size:64;index"`
	DisplayName  string `gorm:"size:128"`
	Price        float64
	Weight       float64
	ReactionTime int64
	Score        float64
	Seq          uint64
	CreatedAt    time.Time `gorm:"index"`
}

func (bidLogModel) TableName() string { return "bid_logs" }

type resultModel struct {
	ProductID string `gorm:"primaryKey;size:64"`
	Entries   string `gorm:"type:text"`
	EndedAt   time.Time
	Digest    string `gorm:"size:64"`
}

func (resultModel) TableName() string { return "product_results" }

// GormRepository stores products, bid logs and results in PostgreSQL.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(dsn string) (*GormRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := db.AutoMigrate(&productModel{}, &bidLogModel{}, &resultModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate schema")
	}
	return NewGormRepository(db), nil
}

func (r *GormRepository) SaveProduct(ctx context.Context, p core.Product) error {
	m := toProductModel(p)
	return errors.Wrap(r.db.WithContext(ctx).Save(&m).Error, "save product")
}

func (r *GormRepository) ListProducts(ctx context.Context) ([]core.Product, error) {
	var rows []productModel
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products := make([]core.Product, len(rows))
	for i, row := range rows {
		products[i] = fromProductModel(row)
	}
	return products, nil
}

func (r *GormRepository) AppendBid(ctx context.Context, bid core.Bid) error {
	m := toBidLogModel(bid)
	return errors.Wrap(r.db.WithContext(ctx).Create(&m).Error, "append bid")
}

func (r *GormRepository) ListBids(ctx context.Context, productID string) ([]core.Bid, error) {
	var rows []bidLogModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC, seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list bids")
	}
	bids := make([]core.Bid, len(rows))
	for i, row := range rows {
		bids[i] = fromBidLogModel(row)
	}
	return bids, nil
}

func (r *GormRepository) SaveResult(ctx context.Context, result core.ProductResult) error {
	m, err := toResultModel(result)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m).Error
	return errors.Wrap(err, "save result")
}

func (r *GormRepository) LoadResult(ctx context.Context, productID string) (core.ProductResult, bool, error) {
	var m resultModel
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.ProductResult{}, false, nil
	}
	if err != nil {
		return core.ProductResult{}, false, errors.Wrap(err, "load result")
	}
	result, err := fromResultModel(m)
	return result, err == nil, err
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toProductModel(p core.Product) productModel {
	return productModel{
		ID:                  p.ID,
		Title:               p.Title,
		Description:         p.Description,
		BasePrice:           p.BasePrice,
		K:                   p.K,
		StartTime:           p.StartTime,
		EndTime:             p.EndTime,
		Alpha:               p.Coefficients.Alpha,
		Beta:                p.Coefficients.Beta,
		Gamma:               p.Coefficients.Gamma,
		Status:              string(p.Status),
		CurrentHighestPrice: p.CurrentHighestPrice,
	}
}

func fromProductModel(m productModel) core.Product {
	return core.Product{
		ID:                  m.ID,
		Title:               m.Title,
		Description:         m.Description,
		BasePrice:           m.BasePrice,
		K:                   m.K,
		StartTime:           m.StartTime.UTC(),
		EndTime:             m.EndTime.UTC(),
		Coefficients:        core.Coefficients{Alpha: m.Alpha, Beta: m.Beta, Gamma: m.Gamma},
		Status:              core.Status(m.Status),
		CurrentHighestPrice: m.CurrentHighestPrice,
	}
}

func toBidLogModel(bid core.Bid) bidLogModel {
	return bidLogModel{
		ID:           bid.ID,
		ProductID:    bid.ProductID,
		UserID:       bid.BidderID,
		DisplayName:  bid.Display,
		Price:        bid.Price,
		Weight:       bid.Weight,
		ReactionTime: bid.ReactionTime,
		Score:        bid.Score,
		Seq:          bid.Seq,
		CreatedAt:    bid.SubmittedAt,
	}
}

func fromBidLogModel(m bidLogModel) core.Bid {
	return core.Bid{
		ID:           m.ID,
		ProductID:    m.ProductID,
		BidderID:     m.UserID,
		Display:      m.DisplayName,
		Price:        m.Price,
		Weight:       m.Weight,
		ReactionTime: m.ReactionTime,
		SubmittedAt:  m.CreatedAt.UTC(),
		Seq:          m.Seq,
		Score:        m.Score,
	}
}

func toResultModel(result core.ProductResult) (resultModel, error) {
	entries, err := json.Marshal(result.Entries)
	if err != nil {
		return resultModel{}, errors.Wrap(err, "encode result entries")
	}
	return resultModel{
		ProductID: result.ProductID,
		Entries:   string(entries),
		EndedAt:   result.EndedAt,
		Digest:    result.Digest,
	}, nil
}

func fromResultModel(m resultModel) (core.ProductResult, error) {
	var entries []core.ResultEntry
	if err := json.Unmarshal([]byte(m.Entries), &entries); err != nil {
		return core.ProductResult{}, errors.Wrap(err, "decode result entries")
	}
	return core.ProductResult{
		ProductID: m.ProductID,
		Entries:   entries,
		EndedAt:   m.EndedAt.UTC(),
		Digest:    m.Digest,
	}, nil
}

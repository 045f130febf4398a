// Package testing provides test utilities and database setup for testing the catalog system
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/hikarudo/uwabami/hasher"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestRawRecord creates an unprocessed raw record carrying the given body inline
func (tf *TestFixtures) CreateTestRawRecord(source models.ASPName, sourceProductID string, body []byte) (*models.RawRecord, error) {
	url := fmt.Sprintf("https://example.com/%s/%s", source, sourceProductID)
	record := &models.RawRecord{
		Source:          source,
		SourceProductID: sourceProductID,
		URL:             &url,
		Body:            body,
		ContentHash:     hasher.Sum(body),
		FetchedAt:       utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create test raw record: %w", err)
	}

	return record, nil
}

// CreateTestProduct creates an active canonical product with the given normalized id
func (tf *TestFixtures) CreateTestProduct(normalizedID, title string) (*models.CanonicalProduct, error) {
	product := &models.CanonicalProduct{
		NormalizedProductID: normalizedID,
		Title:               utils.ToPtr(title),
		LocalizedTitles:     models.LocalizedTitles{"ja": title},
		Status:              models.ProductStatusActive,
	}

	if err := tf.DB.DB.Create(product).Error; err != nil {
		return nil, fmt.Errorf("failed to create test product: %w", err)
	}

	return product, nil
}

// CreateTestProductSource attaches a listing for one source to a canonical product
func (tf *TestFixtures) CreateTestProductSource(productID uint, source models.ASPName, sourceProductID string) (*models.ProductSource, error) {
	price := uint(1980)
	listingURL := fmt.Sprintf("https://example.com/%s/%s", source, sourceProductID)
	ps := &models.ProductSource{
		CanonicalProductID: productID,
		ASPName:            source,
		SourceProductID:    sourceProductID,
		PriceJPY:           &price,
		ListingURL:         &listingURL,
	}

	if err := tf.DB.DB.Create(ps).Error; err != nil {
		return nil, fmt.Errorf("failed to create test product source: %w", err)
	}

	return ps, nil
}

// CreateTestPerformer creates a performer with an optional source external id
func (tf *TestFixtures) CreateTestPerformer(name string, provider, externalID string) (*models.Performer, error) {
	performer := &models.Performer{
		CanonicalName: name,
	}
	if err := tf.DB.DB.Create(performer).Error; err != nil {
		return nil, fmt.Errorf("failed to create test performer: %w", err)
	}

	if provider != "" && externalID != "" {
		ext := &models.PerformerExternalID{
			PerformerID: performer.ID,
			Provider:    provider,
			ExternalID:  externalID,
		}
		if err := tf.DB.DB.Create(ext).Error; err != nil {
			return nil, fmt.Errorf("failed to create test performer external id: %w", err)
		}
	}

	return performer, nil
}

// CreateTestOperator creates an active operator with a bcrypt-hashed password
func (tf *TestFixtures) CreateTestOperator(username, password string) (*models.Operator, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	operator := &models.Operator{
		Username:     username,
		PasswordHash: string(hashedPassword),
		IsActive:     utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(operator).Error; err != nil {
		return nil, fmt.Errorf("failed to create test operator: %w", err)
	}

	return operator, nil
}

// CreateTestReviewFlag creates an open review flag for the given record
func (tf *TestFixtures) CreateTestReviewFlag(kind models.ReviewFlagKind, source models.ASPName, sourceProductID, detail string) (*models.ReviewFlag, error) {
	flag := &models.ReviewFlag{
		Kind:            kind,
		Source:          source,
		SourceProductID: sourceProductID,
		Detail:          detail,
		Status:          models.ReviewFlagStatusOpen,
	}

	if err := tf.DB.DB.Create(flag).Error; err != nil {
		return nil, fmt.Errorf("failed to create test review flag: %w", err)
	}

	return flag, nil
}

// RandomProductCode returns a plausible product code with a random numeric part
func RandomProductCode(prefix string) string {
	return fmt.Sprintf("%s-%03d", prefix, rand.Intn(900)+100)
}

// DMMListingJSON builds a minimal DMM API item body for ingestion tests
func DMMListingJSON(contentID, title, maker string, performers []string) []byte {
	body := fmt.Sprintf(`{"content_id":%q,"title":%q,"URL":"https://www.dmm.co.jp/detail/%s/",`, contentID, title, contentID)
	body += fmt.Sprintf(`"date":%q,"iteminfo":{"maker":[{"name":%q}],"genre":[{"name":"single"}],"actress":[`, time.Now().Format("2006-01-02 15:04:05"), maker)
	for i, p := range performers {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"id":%d,"name":%q}`, 1000+i, p)
	}
	body += `]},"prices":{"price":"1980"}}`
	return []byte(body)
}

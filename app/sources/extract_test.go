package sources

import (
	"testing"

	"github.com/hikarudo/uwabami/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDMMItem(t *testing.T) {
	body := []byte(`{
		"content_id": "h_086abw00123",
		"title": "テストタイトル",
		"URL": "https://example.com/detail/h_086abw00123/",
		"affiliateURL": "https://example.com/aff/h_086abw00123/",
		"date": "2026-05-01 10:00:00",
		"volume": "120",
		"prices": {"price": "980"},
		"imageURL": {"large": "https://example.com/l.jpg"},
		"sampleImageURL": {"sample_l": {"image": ["https://example.com/s1.jpg", "https://example.com/s2.jpg"]}},
		"iteminfo": {
			"actress": [{"id": 1008887, "name": "三上悠亜"}],
			"genre": [{"name": "単体作品"}],
			"maker": [{"name": "テストメーカー"}]
		}
	}`)

	fields, err := ParseFields(models.ASPDMM, body)
	require.NoError(t, err)

	assert.Equal(t, "h_086abw00123", fields.RawCode)
	assert.Equal(t, "テストタイトル", fields.Title)
	require.NotNil(t, fields.PriceJPY)
	assert.Equal(t, uint(980), *fields.PriceJPY)
	require.NotNil(t, fields.DurationMinutes)
	assert.Equal(t, uint(120), *fields.DurationMinutes)
	require.NotNil(t, fields.ReleaseDate)
	assert.Equal(t, 2026, fields.ReleaseDate.Year())
	assert.Equal(t, []string{"三上悠亜"}, fields.PerformerNames)
	assert.Equal(t, "1008887", fields.PerformerIDs["三上悠亜"])
	assert.Equal(t, []string{"単体作品"}, fields.Genres)
	require.NotNil(t, fields.MakerName)
	assert.Equal(t, "テストメーカー", *fields.MakerName)
	assert.Len(t, fields.SampleImageURLs, 2)
}

func TestParseDetailPage(t *testing.T) {
	body := []byte(`<!DOCTYPE html>
<html><head>
<meta property="og:title" content="本物のタイトル" />
<meta property="og:url" content="https://example.com/product/product_detail/300MIUM-001/" />
<meta property="og:image" content="https://example.com/pkg.jpg" />
</head><body>
<table>
<tr><th>品番：</th><td>300MIUM-001</td></tr>
<tr><th>出演：</th><td>山田花子、鈴木美咲</td></tr>
<tr><th>収録時間：</th><td>95分</td></tr>
<tr><th>配信開始日：</th><td>2026/04/15</td></tr>
<tr><th>メーカー：</th><td>プレステージ</td></tr>
<tr><th>ジャンル：</th><td>ハメ撮り／素人</td></tr>
</table>
</body></html>`)

	fields, err := ParseFields(models.ASPMGS, body)
	require.NoError(t, err)

	assert.Equal(t, "本物のタイトル", fields.Title)
	assert.Equal(t, "300MIUM-001", fields.RawCode)
	assert.Equal(t, []string{"山田花子", "鈴木美咲"}, fields.PerformerNames)
	require.NotNil(t, fields.DurationMinutes)
	assert.Equal(t, uint(95), *fields.DurationMinutes)
	require.NotNil(t, fields.ReleaseDate)
	assert.Equal(t, 2026, fields.ReleaseDate.Year())
	require.NotNil(t, fields.MakerName)
	assert.Equal(t, "プレステージ", *fields.MakerName)
	assert.Equal(t, []string{"ハメ撮り", "素人"}, fields.Genres)
	require.NotNil(t, fields.ThumbnailURL)
}

func TestParseDetailPageWithoutAnything(t *testing.T) {
	_, err := ParseFields(models.ASPSokmil, []byte(`<html><body><p>404</p></body></html>`))
	assert.Error(t, err)
}

func TestParseFeedRow(t *testing.T) {
	t.Run("duga row", func(t *testing.T) {
		body := []byte(`{
			"productid": "kmproduce-0456",
			"itemno": "KMP-456",
			"title": "フィードのタイトル",
			"caption": "説明テキスト",
			"opendate": "2026-03-20",
			"price": "1480",
			"performer": "佐藤愛",
			"category": "企画",
			"maker": "ケイ・エム・プロデュース",
			"url": "https://duga.example/ppv/kmproduce-0456/",
			"affiliateurl": "https://click.duga.example/ppv/kmproduce-0456-1234/",
			"image": "https://pic.duga.example/kmproduce-0456.jpg"
		}`)

		fields, err := ParseFields(models.ASPDuga, body)
		require.NoError(t, err)

		assert.Equal(t, "KMP-456", fields.RawCode)
		assert.Equal(t, "フィードのタイトル", fields.Title)
		require.NotNil(t, fields.PriceJPY)
		assert.Equal(t, uint(1480), *fields.PriceJPY)
		assert.Equal(t, []string{"佐藤愛"}, fields.PerformerNames)
		require.NotNil(t, fields.AffiliateURL)
	})

	t.Run("adultfesta row with japanese headers", func(t *testing.T) {
		body := []byte(`{
			"品番": "ABW-123",
			"商品名": "別サイトの同じ作品",
			"発売日": "2026年05月01日",
			"価格": "2980円",
			"出演者": "三上悠亜",
			"メーカー": "テストメーカー"
		}`)

		fields, err := ParseFields(models.ASPAdultfesta, body)
		require.NoError(t, err)

		assert.Equal(t, "ABW-123", fields.RawCode)
		assert.Equal(t, "別サイトの同じ作品", fields.Title)
		require.NotNil(t, fields.PriceJPY)
		assert.Equal(t, uint(2980), *fields.PriceJPY)
		require.NotNil(t, fields.ReleaseDate)
	})
}

func TestParseLooseHelpers(t *testing.T) {
	assert.Nil(t, parseLooseDate("soon"))
	assert.Nil(t, parseLooseUint("未定"))

	d := parseLooseDate("2026/01/02")
	require.NotNil(t, d)
	assert.Equal(t, 2, d.Day())

	n := parseLooseUint("120分")
	require.NotNil(t, n)
	assert.Equal(t, uint(120), *n)
}

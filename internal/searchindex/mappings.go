package searchindex

// priceIndexMapping declares keeper-prices: exact + analyzed product title,
// numeric price fields, and a 50k result window for deep pagination.
const priceIndexMapping = `{
  "settings": {
    "max_result_window": 50000
  },
  "mappings": {
    "properties": {
      "product_code":   {"type": "keyword"},
      "product_title":  {
        "type": "text",
        "fields": {"exact": {"type": "keyword"}}
      },
      "current_price":  {"type": "double"},
      "target_price":   {"type": "double"},
      "previous_price": {"type": "double"},
      "percent_change": {"type": "double"},
      "domain":         {"type": "integer"},
      "currency":       {"type": "keyword"},
      "timestamp":      {"type": "date"},
      "event_type":     {"type": "keyword"}
    }
  }
}`

// dealIndexMapping declares keeper-deals: title/description analyzed with a
// custom pipeline (standard tokenizer, lowercase, language stemmer, and
// diacritic folding) plus a completion-suggest subfield.
const dealIndexMapping = `{
  "settings": {
    "max_result_window": 50000,
    "analysis": {
      "filter": {
        "keeper_stemmer": {
          "type": "stemmer",
          "language": "light_german"
        },
        "keeper_folding": {
          "type": "asciifolding",
          "preserve_original": true
        }
      },
      "analyzer": {
        "keeper_deal_analyzer": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "keeper_folding", "keeper_stemmer"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "product_code": {"type": "keyword"},
      "title": {
        "type": "text",
        "analyzer": "keeper_deal_analyzer",
        "fields": {
          "exact":    {"type": "keyword"},
          "suggest":  {"type": "completion"}
        }
      },
      "description": {
        "type": "text",
        "analyzer": "keeper_deal_analyzer"
      },
      "current_price":    {"type": "double"},
      "original_price":   {"type": "double"},
      "discount_percent": {"type": "double"},
      "rating":           {"type": "float"},
      "review_count":     {"type": "integer"},
      "sales_rank":       {"type": "integer"},
      "domain":           {"type": "integer"},
      "category":         {"type": "keyword"},
      "prime_eligible":   {"type": "boolean"},
      "url":              {"type": "keyword"},
      "deal_score":       {"type": "float"},
      "layout":           {"type": "keyword"},
      "timestamp":        {"type": "date"}
    }
  }
}`

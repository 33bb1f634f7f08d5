package repository

import (
	"encoding/json"
	"fmt"

	"github.com/mmeshcher/pos-billing/internal/model"
)

func encodeItems(items []model.ReceiptItem) ([]byte, error) {
	if items == nil {
		items = []model.ReceiptItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return data, nil
}

func decodeItems(data []byte) ([]model.ReceiptItem, error) {
	var items []model.ReceiptItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

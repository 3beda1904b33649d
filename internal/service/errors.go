package service

import (
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/pkg/rag/access"
)

var (
	ErrForbidden = access.ErrForbidden
	ErrNotFound  = contract.ErrNotFound
)

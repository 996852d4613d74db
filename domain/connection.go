package domain

type ConnectionID string

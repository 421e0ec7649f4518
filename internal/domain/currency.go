package domain

// CurrencyMYR is the single settlement currency for fares, stored in cents (sen).
const CurrencyMYR = "MYR"

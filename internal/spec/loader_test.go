package spec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productsSpec = `openapi: 3.0.0
info:
  title: Product API
  version: 1.0.0
  description: |
    Catalog lookups.
    Second line that should not appear.
servers:
  - url: https://api.example.com/v1
paths:
  /products:
    get:
      summary: List all products
  /products/{sku}:
    get:
      summary: Get a product by SKU
`

const ordersSpec = `{
  "openapi": "3.0.0",
  "info": {
    "title": "Orders API",
    "version": "1.0.0"
  },
  "paths": {
    "/orders": {
      "post": {
        "summary": "Create a new order"
      }
    }
  }
}`

func writeSpecs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.yaml"), []byte(productsSpec), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.json"), []byte(ordersSpec), 0644))
	return dir
}

func TestLoadAll_FromDirectory(t *testing.T) {
	dir := writeSpecs(t)

	specs, warnings, err := LoadAll([]string{dir})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, specs, 2)

	products := specs["products.yaml"]
	require.NotNil(t, products)
	assert.Contains(t, products.Summary, "Product API")
	assert.Contains(t, products.Summary, "Catalog lookups.")
	assert.NotContains(t, products.Summary, "Second line")
	assert.Contains(t, products.Summary, "(2 paths)")
	assert.Equal(t, "https://api.example.com/v1", products.ServerBaseURL())

	orders := specs["orders.json"]
	require.NotNil(t, orders)
	assert.Contains(t, orders.Summary, "Orders API")
	assert.Empty(t, orders.ServerBaseURL())
}

func TestLoadAll_FromFileList(t *testing.T) {
	dir := writeSpecs(t)

	specs, warnings, err := LoadAll([]string{
		filepath.Join(dir, "products.yaml"),
		filepath.Join(dir, "nonexistent.yaml"),
	})
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "nonexistent.yaml")
	require.Len(t, specs, 1)
	assert.NotNil(t, specs["products.yaml"])
}

func TestLoadAll_MalformedSpecSkipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yaml"), []byte(productsSpec), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("{{not yaml"), 0644))

	specs, warnings, err := LoadAll([]string{dir})
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
	assert.Len(t, specs, 1)
}

func TestLoadAll_NothingLoaded(t *testing.T) {
	dir := t.TempDir()
	_, _, err := LoadAll([]string{dir})
	assert.Error(t, err)

	_, _, err = LoadAll(nil)
	assert.Error(t, err)
}

func TestMarshalForPrompt_Truncates(t *testing.T) {
	dir := writeSpecs(t)
	specs, _, err := LoadAll([]string{dir})
	require.NoError(t, err)

	full, err := MarshalForPrompt(specs["products.yaml"], 0)
	require.NoError(t, err)
	assert.True(t, strings.Contains(full, "Product API"))

	short, err := MarshalForPrompt(specs["products.yaml"], 10)
	require.NoError(t, err)
	assert.Len(t, short, 10)
}

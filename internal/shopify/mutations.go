package shopify

// ProductCreateMutation creates a product with variants
const ProductCreateMutation = `
mutation productCreate($input: ProductInput!) {
  productCreate(input: $input) {
    product {
      id
      variants(first: 250) {
        edges {
          node {
            id
            sku
          }
        }
      }
    }
    userErrors {
      field
      message
    }
  }
}
`

// ProductInput represents the input for creating a product
type ProductInput struct {
	Title           string           `json:"title"`
	DescriptionHTML *string          `json:"descriptionHtml,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
	Variants        []VariantInput   `json:"variants,omitempty"`
	Metafields      []MetafieldInput `json:"metafields,omitempty"`
}

type VariantInput struct {
	SKU     *string  `json:"sku,omitempty"`
	Price   *string  `json:"price,omitempty"`
	Options []string `json:"options,omitempty"`
}

type MetafieldInput struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// VariantUpdateMutation updates one variant's price
const VariantUpdateMutation = `
mutation productVariantUpdate($input: ProductVariantInput!) {
  productVariantUpdate(input: $input) {
    productVariant {
      id
      price
    }
    userErrors {
      field
      message
    }
  }
}
`

// InventorySetMutation sets on-hand quantity at a location
const InventorySetMutation = `
mutation inventorySetOnHandQuantities($input: InventorySetOnHandQuantitiesInput!) {
  inventorySetOnHandQuantities(input: $input) {
    inventoryAdjustmentGroup {
      id
    }
    userErrors {
      field
      message
    }
  }
}
`

// BulkOperationRunQueryMutation submits a bulk read job
const BulkOperationRunQueryMutation = `
mutation bulkOperationRunQuery($query: String!) {
  bulkOperationRunQuery(query: $query) {
    bulkOperation {
      id
      status
    }
    userErrors {
      field
      message
    }
  }
}
`

// BulkOperationRunMutationMutation submits a bulk write job referencing
// a staged-upload path
const BulkOperationRunMutationMutation = `
mutation bulkOperationRunMutation($mutation: String!, $stagedUploadPath: String!) {
  bulkOperationRunMutation(mutation: $mutation, stagedUploadPath: $stagedUploadPath) {
    bulkOperation {
      id
      status
    }
    userErrors {
      field
      message
    }
  }
}
`

// BulkOperationCancelMutation cancels a running bulk job
const BulkOperationCancelMutation = `
mutation bulkOperationCancel($id: ID!) {
  bulkOperationCancel(id: $id) {
    bulkOperation {
      id
      status
    }
    userErrors {
      field
      message
    }
  }
}
`

// StagedUploadsCreateMutation requests an out-of-band upload target.
// Large payloads must be uploaded separately, then referenced by path.
const StagedUploadsCreateMutation = `
mutation stagedUploadsCreate($input: [StagedUploadInput!]!) {
  stagedUploadsCreate(input: $input) {
    stagedTargets {
      url
      resourceUrl
      parameters {
        name
        value
      }
    }
    userErrors {
      field
      message
    }
  }
}
`

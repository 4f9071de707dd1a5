package shopify

// ProductsQuery fetches products with variants
const ProductsQuery = `
query getProducts($first: Int!, $after: String) {
  products(first: $first, after: $after) {
    pageInfo {
      hasNextPage
      endCursor
    }
    edges {
      node {
        id
        title
        descriptionHtml
        tags
        variants(first: 250) {
          edges {
            node {
              id
              sku
              title
              price
              inventoryQuantity
              selectedOptions {
                name
                value
              }
            }
          }
        }
      }
    }
  }
}
`

// ProductByIDQuery fetches a single product with variants
const ProductByIDQuery = `
query getProduct($id: ID!) {
  product(id: $id) {
    id
    title
    descriptionHtml
    tags
    variants(first: 250) {
      edges {
        node {
          id
          sku
          title
          price
          inventoryQuantity
          selectedOptions {
            name
            value
          }
        }
      }
    }
  }
}
`

// CurrentBulkOperationQuery fetches the bulk operation currently in
// flight for the store, if any. Only one may run at a time.
const CurrentBulkOperationQuery = `
query currentBulkOperation($type: BulkOperationType!) {
  currentBulkOperation(type: $type) {
    id
    status
    errorCode
    objectCount
    url
    createdAt
    completedAt
  }
}
`

// BulkOperationByIDQuery polls one bulk operation by node id
const BulkOperationByIDQuery = `
query bulkOperation($id: ID!) {
  node(id: $id) {
    ... on BulkOperation {
      id
      status
      errorCode
      objectCount
      url
      createdAt
      completedAt
    }
  }
}
`

// BulkProductsQuery is the query document submitted as a bulk read of
// the full eligible catalog. Results arrive as JSONL via the job URL.
const BulkProductsQuery = `
{
  products {
    edges {
      node {
        id
        title
        tags
        variants {
          edges {
            node {
              id
              sku
              price
              inventoryQuantity
              selectedOptions {
                name
                value
              }
            }
          }
        }
      }
    }
  }
}
`

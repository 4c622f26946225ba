package shopify

const mediaFields = `
fragment MediaFields on Media {
  __typename
  id
  alt
  mediaContentType
  status
  preview { image { url } }
  ... on MediaImage { image { url width height } }
  ... on Video { sources { url mimeType format width height } }
  ... on ExternalVideo { embedUrl }
  ... on Model3d { sources { url mimeType format } }
}`

const stagedUploadsCreateMutation = `
mutation stagedUploadsCreate($input: [StagedUploadInput!]!) {
  stagedUploadsCreate(input: $input) {
    stagedTargets {
      url
      resourceUrl
      parameters { name value }
    }
    userErrors { field message }
  }
}`

const productCreateMediaMutation = `
mutation productCreateMedia($productId: ID!, $media: [CreateMediaInput!]!) {
  productCreateMedia(productId: $productId, media: $media) {
    media { id alt mediaContentType status }
    mediaUserErrors { field message code }
  }
}`

const productDeleteMediaMutation = `
mutation productDeleteMedia($productId: ID!, $mediaIds: [ID!]!) {
  productDeleteMedia(productId: $productId, mediaIds: $mediaIds) {
    deletedMediaIds
    mediaUserErrors { field message code }
  }
}`

const productReorderMediaMutation = `
mutation productReorderMedia($id: ID!, $moves: [MoveInput!]!) {
  productReorderMedia(id: $id, moves: $moves) {
    job { id }
    mediaUserErrors { field message code }
  }
}`

const productVariantAppendMediaMutation = `
mutation productVariantAppendMedia($productId: ID!, $variantMedia: [ProductVariantAppendMediaInput!]!) {
  productVariantAppendMedia(productId: $productId, variantMedia: $variantMedia) {
    userErrors { field message code }
  }
}`

const productMediaQuery = `
query productMedia($id: ID!) {
  product(id: $id) {
    id
    media(first: 250) { nodes { ...MediaFields } }
  }
}` + mediaFields

const productsMediaQuery = `
query productsMedia($first: Int!, $after: String) {
  products(first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes {
      id
      title
      productType
      media(first: 1) { nodes { ...MediaFields } }
    }
  }
}` + mediaFields

const collectionMediaQuery = `
query collectionMedia($id: ID!) {
  collection(id: $id) {
    id
    title
    descriptionHtml
    image { url altText width height }
    products(first: 250) {
      nodes {
        id
        title
        productType
        media(first: 1) { nodes { ...MediaFields } }
      }
    }
  }
}` + mediaFields

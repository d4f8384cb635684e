package store

// Every cart document selects lines(first: $lineLimit). The limit is the page
// size; carts longer than that come back with Truncated set.
const cartFragment = `
fragment CartFields on Cart {
  id
  checkoutUrl
  totalQuantity
  cost {
    subtotalAmount { amount currencyCode }
    totalAmount { amount currencyCode }
  }
  lines(first: $lineLimit) {
    pageInfo { hasNextPage }
    edges {
      node {
        id
        quantity
        cost {
          amountPerQuantity { amount currencyCode }
          totalAmount { amount currencyCode }
        }
        merchandise {
          ... on ProductVariant {
            id
            title
            image { url altText }
            product { handle title }
          }
        }
      }
    }
  }
}
`

const cartQuery = `
query cart($cartId: ID!, $lineLimit: Int!) {
  cart(id: $cartId) { ...CartFields }
}
` + cartFragment

const cartCreateMutation = `
mutation cartCreate($input: CartInput!, $lineLimit: Int!) {
  cartCreate(input: $input) {
    cart { ...CartFields }
    userErrors { field message code }
  }
}
` + cartFragment

const cartLinesAddMutation = `
mutation cartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!, $lineLimit: Int!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) {
    cart { ...CartFields }
    userErrors { field message code }
  }
}
` + cartFragment

const cartLinesUpdateMutation = `
mutation cartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!, $lineLimit: Int!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) {
    cart { ...CartFields }
    userErrors { field message code }
  }
}
` + cartFragment

const cartLinesRemoveMutation = `
mutation cartLinesRemove($cartId: ID!, $lineIds: [ID!]!, $lineLimit: Int!) {
  cartLinesRemove(cartId: $cartId, lineIds: $lineIds) {
    cart { ...CartFields }
    userErrors { field message code }
  }
}
` + cartFragment

const productFragment = `
fragment ProductFields on Product {
  id
  handle
  title
  description
  availableForSale
  featuredImage { url altText }
  priceRange { minVariantPrice { amount currencyCode } }
  variants(first: 1) { edges { node { id } } }
}
`

const productsQuery = `
query products($first: Int!) {
  products(first: $first) {
    edges { node { ...ProductFields } }
  }
}
` + productFragment

const collectionProductsQuery = `
query collectionProducts($handle: String!, $first: Int!) {
  collection(handle: $handle) {
    id
    handle
    title
    products(first: $first) {
      edges { node { ...ProductFields } }
    }
  }
}
` + productFragment

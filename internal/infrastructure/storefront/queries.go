package storefront

// orderFields is the node selection shared by the batch and single-order
// queries. Returns ride along on their orders because the platform exposes
// them as a nested connection.
const orderFields = `
	id
	name
	createdAt
	tags
	note
	displayFinancialStatus
	displayFulfillmentStatus
	retailLocation {
		id
	}
	shippingLine {
		title
	}
	totalPriceSet {
		shopMoney {
			amount
			currencyCode
		}
	}
	subtotalPriceSet {
		shopMoney {
			amount
			currencyCode
		}
	}
	totalTaxSet {
		shopMoney {
			amount
			currencyCode
		}
	}
	totalShippingPriceSet {
		shopMoney {
			amount
			currencyCode
		}
	}
	customer {
		id
		firstName
		lastName
		email
		phone
		addresses {
			address1
			address2
			city
			province
			zip
			country
			phone
		}
	}
	shippingAddress {
		address1
		address2
		city
		province
		zip
		country
		phone
	}
	billingAddress {
		address1
		address2
		city
		province
		zip
		country
		phone
	}
	lineItems(first: 50) {
		edges {
			node {
				id
				sku
				title
				quantity
				isGiftCard
				discountedTotalSet {
					shopMoney {
						amount
						currencyCode
					}
				}
				originalUnitPriceSet {
					shopMoney {
						amount
						currencyCode
					}
				}
			}
		}
	}
	transactions(first: 20) {
		id
		kind
		status
		gateway
		processedAt
		amountSet {
			shopMoney {
				amount
				currencyCode
			}
		}
	}
	discountApplications(first: 10) {
		edges {
			node {
				... on DiscountCodeApplication {
					code
				}
				value {
					... on MoneyV2 {
						amount
						currencyCode
					}
				}
			}
		}
	}
	returns(first: 10) {
		edges {
			node {
				id
				status
				createdAt
				returnLineItems(first: 50) {
					edges {
						node {
							... on ReturnLineItem {
								quantity
								fulfillmentLineItem {
									lineItem {
										sku
										title
									}
								}
							}
						}
					}
				}
			}
		}
	}`

const ordersQuery = `
query getOrders($first: Int!, $after: String, $query: String) {
	orders(first: $first, after: $after, sortKey: CREATED_AT, reverse: false, query: $query) {
		edges {
			node {` + orderFields + `
			}
		}
		pageInfo {
			hasNextPage
			endCursor
		}
	}
}`

const orderQuery = `
query getOrder($id: ID!) {
	order(id: $id) {` + orderFields + `
	}
}`

const tagsAddMutation = `
mutation addOrderTags($id: ID!, $tags: [String!]!) {
	tagsAdd(id: $id, tags: $tags) {
		node {
			id
		}
		userErrors {
			field
			message
		}
	}
}`

const tagsRemoveMutation = `
mutation removeOrderTags($id: ID!, $tags: [String!]!) {
	tagsRemove(id: $id, tags: $tags) {
		node {
			id
		}
		userErrors {
			field
			message
		}
	}
}`

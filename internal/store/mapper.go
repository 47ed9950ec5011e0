// mapper.go: conversion from consolidated identities to target entities.
package store

import "github.com/stylr/migrate/internal/identity"

// UserFromIdentity maps a consolidated identity to its target User row,
// including the stylist detail block when the role carries one.
func UserFromIdentity(id *identity.ConsolidatedIdentity) User {
	u := User{
		ID:                 id.ID,
		Name:               id.Name,
		Email:              id.Email,
		Role:               string(id.Role),
		StripeCustomerID:   id.StripeCustomerID,
		EmailNotifications: id.Preferences.EmailNotifications,
		SMSNotifications:   id.Preferences.SMSNotifications,
		MarketingEmails:    id.Preferences.MarketingEmails,
		SourceTable:        id.SourceTable,
		OriginalID:         id.OriginalID,
		CreatedAt:          id.CreatedAt,
		UpdatedAt:          id.UpdatedAt,
	}

	if id.StylistDetails != nil {
		u.StylistDetail = &StylistDetail{
			UserID:           id.ID,
			Bio:              id.StylistDetails.Bio,
			InstagramURL:     id.StylistDetails.InstagramURL,
			FacebookURL:      id.StylistDetails.FacebookURL,
			WebsiteURL:       id.StylistDetails.WebsiteURL,
			PayoutAccountID:  id.StylistDetails.PayoutAccountID,
			TravelsToClients: id.StylistDetails.TravelsToClients,
		}
	}

	return u
}

// UsersFromIdentities maps a consolidated identity slice in order.
func UsersFromIdentities(ids []identity.ConsolidatedIdentity) []User {
	users := make([]User, 0, len(ids))
	for i := range ids {
		users = append(users, UserFromIdentity(&ids[i]))
	}
	return users
}

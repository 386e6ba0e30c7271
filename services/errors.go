package services

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServiceError represents a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func badRequest(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadRequest, Message: msg}
}

func notFound(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusNotFound, Message: msg}
}

func conflict(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusConflict, Message: msg}
}

func forbidden(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusForbidden, Message: msg}
}

func internal(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusInternalServerError, Message: msg}
}

func unavailable(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusServiceUnavailable, Message: msg}
}

func badGateway(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadGateway, Message: msg}
}

// parseID converts a hex id, reporting what kind of id was malformed.
func parseID(raw, what string) (primitive.ObjectID, *ServiceError) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, badRequest("Invalid " + what + " ID")
	}
	return id, nil
}

package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/pharrrodev/type2lyfe-sub001/internal/models"
)

type stubMedicationRepo struct {
	stored []models.Medication
}

func (stub *stubMedicationRepo) ListByUser(userID uint) ([]models.Medication, error) {
	owned := []models.Medication{}
	for _, medication := range stub.stored {
		if medication.UserID == userID {
			owned = append(owned, medication)
		}
	}
	return owned, nil
}

func (stub *stubMedicationRepo) ExistsByName(userID uint, name string) (bool, error) {
	for _, medication := range stub.stored {
		if medication.UserID == userID && strings.EqualFold(medication.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (stub *stubMedicationRepo) Create(medication *models.Medication) error {
	stub.stored = append(stub.stored, *medication)
	return nil
}

func (stub *stubMedicationRepo) DeleteByUserAndID(userID uint, medicationID string) (bool, error) {
	for index, medication := range stub.stored {
		if medication.UserID == userID && medication.ID == medicationID {
			stub.stored = append(stub.stored[:index], stub.stored[index+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func TestMedicationServiceAddListDelete(t *testing.T) {
	service := NewMedicationService(&stubMedicationRepo{})

	added, err := service.Add(4, "  Metformin   XR ", " 500 mg ")
	if err != nil {
		t.Fatalf("Add() unexpected error: %v", err)
	}
	if added.ID == "" || added.Name != "Metformin XR" || added.Dose != "500 mg" {
		t.Fatalf("unexpected medication %#v", added)
	}

	if _, err := service.Add(4, "metformin xr", ""); !errors.Is(err, ErrMedicationExists) {
		t.Fatalf("expected ErrMedicationExists, got %v", err)
	}
	if _, err := service.Add(4, "   ", ""); !errors.Is(err, ErrMedicationNameRequired) {
		t.Fatalf("expected ErrMedicationNameRequired, got %v", err)
	}

	catalog, err := service.Catalog(4)
	if err != nil {
		t.Fatalf("Catalog() unexpected error: %v", err)
	}
	if _, ok := catalog.Lookup(added.ID); !ok {
		t.Fatal("expected the added medication in the catalog")
	}

	otherCatalog, err := service.Catalog(5)
	if err != nil {
		t.Fatalf("Catalog() unexpected error: %v", err)
	}
	if !otherCatalog.Empty() {
		t.Fatal("expected another user's catalog to be empty")
	}

	if err := service.Delete(5, added.ID); !errors.Is(err, ErrMedicationNotFound) {
		t.Fatalf("expected ErrMedicationNotFound for another user, got %v", err)
	}
	if err := service.Delete(4, added.ID); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	listed, err := service.List(4)
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty list after delete, got %#v", listed)
	}
}

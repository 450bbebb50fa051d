package cli

import (
	"context"
	"fmt"
)

type MedicationsCmd struct {
	List   MedicationsListCmd   `cmd:"" default:"1" help:"List configured medications."`
	Add    MedicationsAddCmd    `cmd:"" help:"Add a medication to the catalog."`
	Remove MedicationsRemoveCmd `cmd:"" help:"Remove a medication by id."`
}

type MedicationsListCmd struct{}

func (cmd *MedicationsListCmd) Run(ctx *Context) error {
	api, err := ctx.AuthorizedClient()
	if err != nil {
		return err
	}
	medications, err := api.ListMedications(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.out(), renderMedications(medications))
	return nil
}

type MedicationsAddCmd struct {
	Name string `arg:"" help:"Medication name, e.g. Metformin."`
	Dose string `help:"Usual dose, e.g. 500mg."`
}

func (cmd *MedicationsAddCmd) Run(ctx *Context) error {
	api, err := ctx.AuthorizedClient()
	if err != nil {
		return err
	}
	medication, err := api.AddMedication(context.Background(), cmd.Name, cmd.Dose)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.out(), "Added %s (%s)\n", medication.Name, medication.ID)
	return nil
}

type MedicationsRemoveCmd struct {
	ID string `arg:"" help:"Medication id."`
}

func (cmd *MedicationsRemoveCmd) Run(ctx *Context) error {
	api, err := ctx.AuthorizedClient()
	if err != nil {
		return err
	}
	if err := api.DeleteMedication(context.Background(), cmd.ID); err != nil {
		return err
	}
	fmt.Fprintf(ctx.out(), "Removed %s\n", cmd.ID)
	return nil
}

package techno_gan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// GAN Simple implementation of GAN.
//
// generatorPart - reference to Generator
// discriminatorPart - reference to Discriminator
// modifiedDiscriminator - copy of structure of Discriminator which learnables would be ignored during the training of Generator
//
type GAN struct {
	generatorPart     *GeneratorNet
	discriminatorPart *DiscriminatorNet

	modifiedDiscriminator *Network

	learnables    gorgonia.Nodes
	learnablesGen gorgonia.Nodes
}

// NewGAN Defines GAN on the graph where Generator has been defined.
// Discriminator could live on other graph: its learnables are copied into provided one.
func NewGAN(g *gorgonia.ExprGraph, definedGenerator *GeneratorNet, definedDiscriminator *DiscriminatorNet) (*GAN, error) {
	if definedGenerator == nil || definedDiscriminator == nil {
		return nil, fmt.Errorf("Both Generator and Discriminator must be defined")
	}
	modified, err := definedDiscriminator.private.CloneOn(g, "gan")
	if err != nil {
		return nil, errors.Wrap(err, "Can't copy Discriminator into GAN")
	}
	modified.Name = "gan_discriminator"
	learnablesGen := definedGenerator.Learnables()
	learnables := make(gorgonia.Nodes, 0, len(learnablesGen)+len(modified.Learnables()))
	learnables = append(learnables, learnablesGen...)
	learnables = append(learnables, modified.Learnables()...)
	return &GAN{
		generatorPart:         definedGenerator,
		discriminatorPart:     definedDiscriminator,
		modifiedDiscriminator: modified,
		learnables:            learnables,
		learnablesGen:         learnablesGen,
	}, nil
}

// Out Returns reference to output node
func (net *GAN) Out() *gorgonia.Node {
	return net.modifiedDiscriminator.Out()
}

// GeneratorOut Returns reference to output node of generator part
func (net *GAN) GeneratorOut() *gorgonia.Node {
	return net.generatorPart.Out()
}

// Learnables Returns learnables nodes
func (net *GAN) Learnables() gorgonia.Nodes {
	return net.learnables
}

// GeneratorLearnables Returns learnables nodes of generator part
func (net *GAN) GeneratorLearnables() gorgonia.Nodes {
	return net.learnablesGen
}

// Fwd Initializates feedforward for provided input for disciminator part of GAN
//
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
// Note: input node is not needed since input for Discriminator is just Generator's output
//
func (net *GAN) Fwd(batchSize int) error {
	if net.generatorPart.Out() == nil {
		return fmt.Errorf("Generator's feedforward must be initialized before GAN's one")
	}
	if err := net.modifiedDiscriminator.Fwd(net.generatorPart.Out(), batchSize); err != nil {
		return errors.Wrap(err, "[GAN]")
	}
	return nil
}

// SyncDiscriminator Copies current values of Discriminator's learnables into GAN's copy of Discriminator.
// Should be called after each training step of Discriminator
func (net *GAN) SyncDiscriminator() error {
	if err := net.modifiedDiscriminator.CopyValuesFrom(net.discriminatorPart.private); err != nil {
		return errors.Wrap(err, "Can't sync GAN's Discriminator")
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/release-engineering/cloudimg/internal/cloud"
	"github.com/release-engineering/cloudimg/internal/cloud/awscloud"
)

func newAWS() (*awscloud.AWS, error) {
	var (
		a   *awscloud.AWS
		err error
	)
	if cfg.AWS.AccessKeyID != "" {
		a, err = awscloud.New(cfg.AWS.Region, cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, cfg.AWS.SessionToken)
	} else {
		a, err = awscloud.NewDefault(cfg.AWS.Region)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot create the AWS client: %w", err)
	}
	a.ImportRole = cfg.AWS.ImportRole
	return a, nil
}

func awsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aws",
		Short: "Publish or delete AMIs",
	}
	cmd.AddCommand(awsPublishCmd(), awsDeleteCmd())
	return cmd
}

func awsPublishCmd() *cobra.Command {
	var (
		imagePath       string
		imageName       string
		objectName      string
		snapshotName    string
		bucket          string
		description     string
		arch            string
		virtType        string
		bootMode        string
		rootDeviceName  string
		volumeType      string
		billingProducts []string
		tags            []string
		snapshotTags    []string
		imageTags       []string
		accounts        []string
		groups          []string
		snapAccounts    []string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload a disk image and register it as an AMI",
		RunE: func(cmd *cobra.Command, args []string) error {
			if bucket == "" {
				bucket = cfg.AWS.Bucket
			}

			tagMap, err := parseTags(tags)
			if err != nil {
				return err
			}
			snapshotTagMap, err := parseTags(snapshotTags)
			if err != nil {
				return err
			}
			imageTagMap, err := parseTags(imageTags)
			if err != nil {
				return err
			}
			mode, err := parseBootMode(bootMode)
			if err != nil {
				return err
			}

			req, err := cloud.NewPublishRequest(cloud.PublishRequest{
				ImagePath:        imagePath,
				ImageName:        imageName,
				ObjectName:       objectName,
				SnapshotName:     snapshotName,
				Container:        bucket,
				Description:      description,
				Arch:             arch,
				VirtType:         virtType,
				RootDeviceName:   rootDeviceName,
				VolumeType:       volumeType,
				BootMode:         mode,
				BillingProducts:  billingProducts,
				Tags:             tagMap,
				SnapshotTags:     snapshotTagMap,
				ImageTags:        imageTagMap,
				Accounts:         accounts,
				Groups:           groups,
				SnapshotAccounts: snapAccounts,
			})
			if err != nil {
				return err
			}

			a, err := newAWS()
			if err != nil {
				return err
			}

			image, err := a.Publish(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", image.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "local path or HTTP(S) URL of the raw image, optionally .xz compressed")
	cmd.Flags().StringVarP(&imageName, "name", "n", "", "name of the published image")
	cmd.Flags().StringVar(&objectName, "object-name", "", "name of the S3 object, derived from the image file name by default")
	cmd.Flags().StringVar(&snapshotName, "snapshot-name", "", "name of the snapshot, derived from the object name by default")
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "target S3 bucket, overrides the configuration")
	cmd.Flags().StringVar(&description, "description", "", "description of the published image")
	cmd.Flags().StringVarP(&arch, "arch", "a", "x86_64", "image architecture")
	cmd.Flags().StringVar(&virtType, "virt-type", "hvm", "virtualization type")
	cmd.Flags().StringVar(&bootMode, "boot-mode", "", "boot mode: uefi, legacy-bios or uefi-preferred")
	cmd.Flags().StringVar(&rootDeviceName, "root-device", "/dev/sda1", "root device name")
	cmd.Flags().StringVar(&volumeType, "volume-type", "gp3", "EBS volume type")
	cmd.Flags().StringSliceVar(&billingProducts, "billing-product", nil, "billing product codes")
	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "tag applied to every created resource, key=value, repeatable")
	cmd.Flags().StringArrayVar(&snapshotTags, "snapshot-tag", nil, "extra tag for the snapshot, key=value, repeatable")
	cmd.Flags().StringArrayVar(&imageTags, "image-tag", nil, "extra tag for the image, key=value, repeatable")
	cmd.Flags().StringSliceVar(&accounts, "share-account", nil, "account ids that get launch permission")
	cmd.Flags().StringSliceVar(&groups, "share-group", nil, "groups that get launch permission, e.g. all")
	cmd.Flags().StringSliceVar(&snapAccounts, "snapshot-account", nil, "account ids that get volume-create permission on the snapshot")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func awsDeleteCmd() *cobra.Command {
	var (
		imageID      string
		imageName    string
		snapshotID   string
		snapshotName string
		skipSnapshot bool
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Deregister an AMI and delete its snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := cloud.NewDeleteRequest(cloud.DeleteRequest{
				ImageID:      imageID,
				ImageName:    imageName,
				SnapshotID:   snapshotID,
				SnapshotName: snapshotName,
				SkipSnapshot: skipSnapshot,
			})
			if err != nil {
				return err
			}

			a, err := newAWS()
			if err != nil {
				return err
			}

			result, err := a.Delete(cmd.Context(), req)
			if err != nil {
				return err
			}
			printDeleteResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&imageID, "image-id", "", "id of the AMI to delete")
	cmd.Flags().StringVarP(&imageName, "name", "n", "", "name of the AMI to delete")
	cmd.Flags().StringVar(&snapshotID, "snapshot-id", "", "id of the snapshot to delete when no image is found")
	cmd.Flags().StringVar(&snapshotName, "snapshot-name", "", "name of the snapshot to delete when no image is found")
	cmd.Flags().BoolVar(&skipSnapshot, "skip-snapshot", false, "leave the backing snapshot in place")

	return cmd
}

func printDeleteResult(result *cloud.DeleteResult) {
	if result.ImageID == nil && result.SnapshotID == nil {
		fmt.Println("nothing to delete")
		return
	}
	if result.ImageID != nil {
		fmt.Printf("deleted image: %s\n", *result.ImageID)
	}
	if result.SnapshotID != nil {
		fmt.Printf("deleted snapshot: %s\n", *result.SnapshotID)
	}
}
